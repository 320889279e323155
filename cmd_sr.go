package main

import (
	"strings"

	"gitlab.prplanit.com/precisionplanit/sapsteward/hana"
	"gitlab.prplanit.com/precisionplanit/sapsteward/output"

	"github.com/spf13/cobra"
)

var srCmd = &cobra.Command{
	Use:   "sr",
	Short: "Commands to interact with SAP HANA system replication",
}

var (
	srSapcontrol bool
	srDetails    bool
	srForce      bool
	srName       string

	srRegister struct {
		name, remoteHost, remoteInstance string
		replicationMode, operationMode   string
		opts                             hana.RegisterOptions
	}

	srCopySSFS struct {
		remoteHost, remotePassword string
	}
)

var srStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show SAP HANA system replication state",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		if srDetails {
			details, err := inst.SrStateDetails(cmd.Context())
			if err != nil {
				return err
			}
			output.KeyValues(cmd.OutOrStdout(), details.Keys(), func(k string) string {
				v, _ := details.Get(k)
				return v
			})
			return nil
		}
		res, err := inst.SrStateRaw(cmd.Context(), srSapcontrol)
		if err != nil {
			return err
		}
		output.Raw(res.Output)
		if !srSapcontrol {
			output.Field("System replication state", hana.ClassifySrState(res.Output).String())
		}
		return nil
	}),
}

var srStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show SAP HANA system replication status",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		res, err := inst.SrStatusRaw(cmd.Context(), srSapcontrol)
		if err != nil {
			return err
		}
		output.Raw(res.Output)
		status := hana.SrStatusFromCode(res.ExitCode)
		output.Field("System replication status", status.String())
		switch status {
		case hana.SrStatusActive:
		case hana.SrStatusError:
			output.Fail("System replication reports an error")
		default:
			output.Warn("System replication is not active")
		}
		return nil
	}),
}

var srDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable SAP HANA system replication (to be executed in Primary node)",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		if err := inst.SrDisablePrimary(cmd.Context()); err != nil {
			return err
		}
		output.Success("System replication disabled")
		return nil
	}),
}

var srCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Cleanup SAP HANA system replication",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		if err := inst.SrCleanup(cmd.Context(), srForce); err != nil {
			return err
		}
		output.Success("System replication configuration removed")
		return nil
	}),
}

var srTakeoverCmd = &cobra.Command{
	Use:   "takeover",
	Short: "Perform a takeover operation (to be executed in Secondary node)",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		if err := inst.SrTakeover(cmd.Context()); err != nil {
			return err
		}
		output.Success("Takeover completed")
		return nil
	}),
}

var srEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable SAP HANA system replication primary site",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		if err := inst.SrEnablePrimary(cmd.Context(), srName); err != nil {
			return err
		}
		output.Success("System replication enabled as primary site %s", srName)
		return nil
	}),
}

var srRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register SAP HANA system replication secondary site",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		output.Header("hana", "sr register", inst.SID(), inst.Number(), inst.RemoteHost())
		r := srRegister
		if r.opts.PrimaryPassword == "" {
			r.opts.PrimaryPassword = cfg.Password
		}
		err := inst.SrRegisterSecondary(cmd.Context(), r.name, r.remoteHost, r.remoteInstance,
			r.replicationMode, r.operationMode, r.opts)
		if err != nil {
			return err
		}
		output.Success("Registered as secondary site %s of %s", r.name, r.remoteHost)
		return nil
	}),
}

var srUnregisterCmd = &cobra.Command{
	Use:   "unregister",
	Short: "Unregister SAP HANA system replication secondary site",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		if err := inst.SrUnregisterSecondary(cmd.Context(), srName); err != nil {
			return err
		}
		output.Success("Unregistered from primary site %s", srName)
		return nil
	}),
}

var srCopySSFSCmd = &cobra.Command{
	Use:   "copy-ssfs",
	Short: "Copy the SSFS key files from another host",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		if err := inst.CopySSFSFiles(cmd.Context(), srCopySSFS.remoteHost, srCopySSFS.remotePassword); err != nil {
			return err
		}
		output.Success("SSFS files copied from %s", srCopySSFS.remoteHost)
		return nil
	}),
}

func init() {
	srStateCmd.Flags().BoolVar(&srSapcontrol, "sapcontrol", false, "Print in sapcontrol format")
	srStateCmd.Flags().BoolVar(&srDetails, "details", false, "Print the parsed state as a table")
	srStatusCmd.Flags().BoolVar(&srSapcontrol, "sapcontrol", false, "Print in sapcontrol format")
	srCleanupCmd.Flags().BoolVar(&srForce, "force", false, "Force the cleanup")

	srEnableCmd.Flags().StringVar(&srName, "name", "", "Primary site name")
	_ = srEnableCmd.MarkFlagRequired("name")
	srUnregisterCmd.Flags().StringVar(&srName, "name", "", "Primary site name")
	_ = srUnregisterCmd.MarkFlagRequired("name")

	rf := srRegisterCmd.Flags()
	rf.StringVar(&srRegister.name, "name", "", "Secondary site name")
	rf.StringVar(&srRegister.remoteHost, "remote-host", "", "Primary site hostname")
	rf.StringVar(&srRegister.remoteInstance, "remote-instance", "", "Primary site SAP HANA instance number")
	rf.StringVar(&srRegister.replicationMode, "replication-mode", "sync", "Replication mode: "+strings.Join(hana.SyncModes, ", "))
	rf.StringVar(&srRegister.operationMode, "operation-mode", "logreplay", "Operation mode")
	rf.IntVar(&srRegister.opts.Timeout, "timeout", 0, "Seconds to keep retrying the registration")
	rf.IntVar(&srRegister.opts.Interval, "interval", 5, "Seconds between registration attempts")
	rf.StringVar(&srRegister.opts.PrimaryPassword, "primary-password", "", "<sid>adm password on the primary (the local one by default)")
	for _, name := range []string{"name", "remote-host", "remote-instance"} {
		_ = srRegisterCmd.MarkFlagRequired(name)
	}

	cf := srCopySSFSCmd.Flags()
	cf.StringVar(&srCopySSFS.remoteHost, "remote-host", "", "Host to copy the files from")
	cf.StringVar(&srCopySSFS.remotePassword, "remote-password", "",
		"<sid>adm password on the other host (sid and instance must match the current host)")
	_ = srCopySSFSCmd.MarkFlagRequired("remote-host")
	_ = srCopySSFSCmd.MarkFlagRequired("remote-password")

	srCmd.AddCommand(
		srStateCmd, srStatusCmd, srDisableCmd, srCleanupCmd, srTakeoverCmd,
		srEnableCmd, srRegisterCmd, srUnregisterCmd, srCopySSFSCmd,
	)
}

