package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/hana"
	"gitlab.prplanit.com/precisionplanit/sapsteward/netweaver"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// cfgFile is the --config path; every other global flag is read back
	// through common.LoadConfig.
	cfgFile string
	// cfg is the merged configuration, set before any subcommand runs.
	cfg *common.Config
	// jsonLogs switches the default logger to JSON. serve always sets it.
	jsonLogs bool
)

func main() {
	common.InitLogging(false)
	os.Exit(execute(os.Args[1:], os.Stderr))
}

// execute runs the command tree and returns the exit code. Errors often
// carry the failed command line, so registered secrets are masked.
func execute(args []string, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", common.Redact(err.Error()))
		return 1
	}
	return 0
}

var rootCmd = &cobra.Command{
	Use:   "sapsteward",
	Short: "sapsteward - administration client for SAP HANA and SAP Netweaver",
	Long: `sapsteward runs the SAP HANA and SAP Netweaver administration tools
(HDB, hdbnsutil, hdbsql, sapcontrol, sapinst) as the <sid>adm user, locally
or over ssh, and interprets their output.

Connection settings come from flags, SAPSTEWARD_* environment variables or a
JSON/YAML file given with --config, in that order of precedence.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("verbosity", "v", "", "Logging level: DEBUG, INFO, WARN, ERROR (INFO by default)")
	pf.StringP("remote", "r", "", "Run the command on another machine using ssh")
	pf.StringVarP(&cfgFile, "config", "c", common.Env("CONFIG", ""), "JSON or YAML file with the instance data (sid, instance and password)")
	pf.StringP("sid", "s", "", "SAP system id")
	pf.StringP("instance", "i", "", "SAP instance number")
	pf.StringP("password", "p", "", "<sid>adm password")
	pf.BoolVar(&jsonLogs, "json-logs", common.EnvBool("JSON_LOGS", false), "Write logs as JSON")

	rootCmd.AddCommand(hanaCmd, srCmd, nwCmd, serveCmd)
}

// loadConfig merges defaults, the config file, env vars and flags, then
// re-initializes logging at the requested level.
func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := common.LoadConfig(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	cfg = c
	common.RegisterSecret(cfg.Password)
	slog.SetDefault(common.NewLogger(os.Stderr, jsonLogs, common.ResolveLogLevel(cfg.Verbosity)))
	if cfgFile != "" {
		common.DebugLog("Configuration loaded from %s", cfgFile)
	}
	return nil
}

// identity validates the instance settings, asking for the password on a
// terminal when none was configured.
func identity() (common.Identity, error) {
	if cfg.Password == "" && cfg.SID != "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "%sadm password: ", strings.ToLower(cfg.SID))
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return common.Identity{}, fmt.Errorf("reading password: %w", err)
		}
		cfg.Password = string(pw)
	}
	return cfg.Identity()
}

// newExecutor is swapped in tests.
var newExecutor = func() shell.Executor {
	return shell.NewRunner(slog.Default())
}

func hanaInstance() (*hana.Instance, error) {
	id, err := identity()
	if err != nil {
		return nil, err
	}
	return hana.New(id, newExecutor(), hana.WithRemoteHost(cfg.Remote), hana.WithLogger(slog.Default())), nil
}

func nwInstance() (*netweaver.Instance, error) {
	id, err := identity()
	if err != nil {
		return nil, err
	}
	return netweaver.New(id, newExecutor(), netweaver.WithRemoteHost(cfg.Remote), netweaver.WithLogger(slog.Default())), nil
}
