package main

import (
	"strconv"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/netweaver"
	"gitlab.prplanit.com/precisionplanit/sapsteward/output"

	"github.com/spf13/cobra"
)

var nwCmd = &cobra.Command{
	Use:   "nw",
	Short: "Commands to interact with SAP Netweaver instances",
}

var (
	nwKind  string
	nwWait  int
	nwDelay int
)

func nwRun(fn func(cmd *cobra.Command, inst *netweaver.Instance) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		inst, err := nwInstance()
		if err != nil {
			return err
		}
		return fn(cmd, inst)
	}
}

var nwProcessesCmd = &cobra.Command{
	Use:   "processes",
	Short: "List the instance processes (GetProcessList)",
	RunE: nwRun(func(cmd *cobra.Command, inst *netweaver.Instance) error {
		res, err := inst.ProcessList(cmd.Context(), netweaver.SapcontrolOptions{})
		if err != nil {
			return err
		}
		output.Raw(res.Output)
		return nil
	}),
}

var nwInstancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List the instances of the system (GetSystemInstanceList)",
	RunE: nwRun(func(cmd *cobra.Command, inst *netweaver.Instance) error {
		res, err := inst.SystemInstances(cmd.Context(), netweaver.SapcontrolOptions{})
		if err != nil {
			return err
		}
		output.Raw(res.Output)
		return nil
	}),
}

var nwIsInstalledCmd = &cobra.Command{
	Use:   "is-installed",
	Short: "Check if the instance exists, optionally with a given role",
	RunE: nwRun(func(cmd *cobra.Command, inst *netweaver.Instance) error {
		ok, err := inst.IsInstalled(cmd.Context(), netweaver.Kind(nwKind))
		if err != nil {
			return err
		}
		output.Field("SAP Netweaver instance installed", strconv.FormatBool(ok))
		return nil
	}),
}

var nwEnsaVersionCmd = &cobra.Command{
	Use:   "ensa-version",
	Short: "Show the enqueue server generation of an ASCS or ERS instance",
	RunE: nwRun(func(cmd *cobra.Command, inst *netweaver.Instance) error {
		v, err := inst.EnsaVersion(cmd.Context(), netweaver.Kind(nwKind))
		if err != nil {
			return err
		}
		output.Field("ENSA version", strconv.Itoa(v))
		return nil
	}),
}

var nwStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the instance",
	RunE: nwRun(func(cmd *cobra.Command, inst *netweaver.Instance) error {
		if _, err := inst.Start(cmd.Context(), nwWait, nwDelay, netweaver.SapcontrolOptions{}); err != nil {
			return err
		}
		output.Success("SAP Netweaver instance %s started", inst.Number())
		return nil
	}),
}

var nwStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the instance",
	RunE: nwRun(func(cmd *cobra.Command, inst *netweaver.Instance) error {
		if _, err := inst.Stop(cmd.Context(), nwWait, nwDelay, netweaver.SapcontrolOptions{}); err != nil {
			return err
		}
		output.Success("SAP Netweaver instance %s stopped", inst.Number())
		return nil
	}),
}

func init() {
	nwIsInstalledCmd.Flags().StringVar(&nwKind, "type", "", "Instance role: ascs, ers, ci, di (any when empty)")
	nwEnsaVersionCmd.Flags().StringVar(&nwKind, "type", "", "Instance role: ascs or ers")
	_ = nwEnsaVersionCmd.MarkFlagRequired("type")
	for _, c := range []*cobra.Command{nwStartCmd, nwStopCmd} {
		c.Flags().IntVar(&nwWait, "wait", common.EnvInt("SAPCONTROL_WAIT", netweaver.DefaultWait), "Seconds to wait for the operation (0 returns immediately)")
		c.Flags().IntVar(&nwDelay, "delay", 0, "Seconds between status polls while waiting")
	}

	nwCmd.AddCommand(nwProcessesCmd, nwInstancesCmd, nwIsInstalledCmd, nwEnsaVersionCmd, nwStartCmd, nwStopCmd)
}
