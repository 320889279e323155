package main

import (
	"gitlab.prplanit.com/precisionplanit/sapsteward/output"
	"gitlab.prplanit.com/precisionplanit/sapsteward/saputils"

	"github.com/spf13/cobra"
)

var sapcarOpts saputils.SapcarOptions

var sapcarCmd = &cobra.Command{
	Use:   "sapcar <sapcar-exe> <sar-file>",
	Short: "Extract a SAR or CAR archive with SAPCAR",
	Long: `Extracts an archive with SAPCAR -xvf. Both paths must exist on this host.
The command runs as --user when set, and over ssh with --remote.`,
	Args: cobra.ExactArgs(2),
	// sapcar needs no instance, so the global settings are only loaded.
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := sapcarOpts
		opts.RemoteHost = cfg.Remote
		res, err := saputils.ExtractSapcar(cmd.Context(), newExecutor(), args[0], args[1], opts)
		if err != nil {
			return err
		}
		output.Raw(res.Output)
		return nil
	},
}

func init() {
	f := sapcarCmd.Flags()
	f.StringVar(&sapcarOpts.Options, "options", "", "Additional SAPCAR options")
	f.StringVar(&sapcarOpts.OutputDir, "output-dir", "", "Directory to extract into (created when missing)")
	f.StringVar(&sapcarOpts.User, "user", "", "User to run SAPCAR as")
	f.StringVar(&sapcarOpts.Password, "user-password", "", "Password of --user")
	rootCmd.AddCommand(sapcarCmd)
}
