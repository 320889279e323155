package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/hana"
	"gitlab.prplanit.com/precisionplanit/sapsteward/hdb"
	"gitlab.prplanit.com/precisionplanit/sapsteward/output"

	"github.com/spf13/cobra"
)

var hanaCmd = &cobra.Command{
	Use:   "hana",
	Short: "Commands to interact with SAP HANA database",
}

// hanaRun wraps a subcommand body that only needs the instance.
func hanaRun(fn func(cmd *cobra.Command, inst *hana.Instance) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		inst, err := hanaInstance()
		if err != nil {
			return err
		}
		return fn(cmd, inst)
	}
}

// credFlags are the hdbsql login flags shared by dummy, hdbsql and backup.
type credFlags struct {
	keyName      string
	userName     string
	userPassword string
	database     string
}

func (c *credFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&c.keyName, "key-name", "", "User store key to connect with (user, password and database are then ignored)")
	f.StringVar(&c.userName, "user-name", "", "Database user")
	f.StringVar(&c.userPassword, "user-password", "", "Database user password")
	f.StringVar(&c.database, "database", "", "Database name to connect to")
}

func (c *credFlags) credentials() hana.Credentials {
	return hana.Credentials{KeyName: c.keyName, UserName: c.userName, UserPassword: c.userPassword}
}

var (
	dummyCreds  credFlags
	hdbsqlCreds credFlags
	hdbsqlQuery string
	backupCreds credFlags
	backupName  string

	userKey struct {
		keyName, environment, userName, userPassword, database string
	}

	uninstallYes          bool
	uninstallRootUser     string
	uninstallRootPassword string
	uninstallFolder       string

	queryOpts struct {
		driver, host, format     string
		user, password, database string
		port                     int
	}
)

var hanaIsRunningCmd = &cobra.Command{
	Use:   "is-running",
	Short: "Check if SAP HANA database is running",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		running, err := inst.IsRunning(cmd.Context())
		if err != nil {
			return err
		}
		output.Field("SAP HANA database running state", strconv.FormatBool(running))
		return nil
	}),
}

var hanaVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show SAP HANA database version",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		v, err := inst.Version(cmd.Context())
		if err != nil {
			return err
		}
		output.Field("SAP HANA version", v)
		return nil
	}),
}

var hanaStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start SAP HANA database",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		if err := inst.Start(cmd.Context()); err != nil {
			return err
		}
		output.Success("SAP HANA database %s started", strings.ToUpper(inst.SID()))
		return nil
	}),
}

var hanaStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop SAP HANA database",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		if err := inst.Stop(cmd.Context()); err != nil {
			return err
		}
		output.Success("SAP HANA database %s stopped", strings.ToUpper(inst.SID()))
		return nil
	}),
}

var hanaInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show SAP HANA database information",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		res, err := inst.Info(cmd.Context())
		if err != nil {
			return err
		}
		output.Raw(res.Output)
		return nil
	}),
}

var hanaKillCmd = &cobra.Command{
	Use:   "kill",
	Short: "Kill all SAP HANA database processes",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		if err := inst.Kill(cmd.Context()); err != nil {
			return err
		}
		output.Success("SAP HANA database %s processes killed", strings.ToUpper(inst.SID()))
		return nil
	}),
}

var hanaOverviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show SAP HANA database overview",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		res, err := inst.Overview(cmd.Context())
		if err != nil {
			return err
		}
		output.Raw(res.Output)
		return nil
	}),
}

var hanaLandscapeCmd = &cobra.Command{
	Use:   "landscape",
	Short: "Show SAP HANA database landscape",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		res, err := inst.Landscape(cmd.Context())
		if err != nil {
			return err
		}
		output.Raw(res.Output)
		return nil
	}),
}

// confirm asks a y/n question on the command's stdin. Only "y" accepts.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s (y/n): ", question)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return false
	}
	return strings.TrimSpace(scanner.Text()) == "y"
}

var hanaUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall SAP HANA database instance",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		output.Header("hana", "uninstall", inst.SID(), inst.Number(), inst.RemoteHost())
		question := fmt.Sprintf("This command will uninstall SAP HANA instance with sid %s and instance number %s",
			inst.SID(), inst.Number())
		if uninstallYes {
			common.WarnLog("Uninstalling %s without confirmation", strings.ToUpper(inst.SID()))
		} else if !confirm(cmd, question) {
			output.Info("Command execution canceled")
			return nil
		}
		rootUser, rootPassword := uninstallRootUser, uninstallRootPassword
		if rootUser == "" {
			rootUser, rootPassword = hana.SidAdm(inst.SID()), cfg.Password
		}
		if err := inst.Uninstall(cmd.Context(), rootUser, rootPassword, uninstallFolder); err != nil {
			return err
		}
		output.Complete("SAP HANA instance " + strings.ToUpper(inst.SID()) + " uninstalled")
		return nil
	}),
}

var hanaDummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Get data from DUMMY table",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		res, err := inst.Dummy(cmd.Context(), dummyCreds.credentials(), dummyCreds.database)
		if err != nil {
			return err
		}
		output.Raw(res.Output)
		return nil
	}),
}

var hanaHdbsqlCmd = &cobra.Command{
	Use:   "hdbsql",
	Short: "Run a sql command with hdbsql",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		res, err := inst.RunHdbsql(cmd.Context(), hdbsqlCreds.credentials(), hdbsqlCreds.database, hdbsqlQuery)
		if err != nil {
			return err
		}
		output.Raw(res.Output)
		return nil
	}),
}

var hanaUserCmd = &cobra.Command{
	Use:   "user",
	Short: "Create a new user store key",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		err := inst.CreateUserKey(cmd.Context(), userKey.keyName, userKey.environment,
			userKey.userName, userKey.userPassword, userKey.database)
		if err != nil {
			return err
		}
		output.Success("User key %s created", userKey.keyName)
		return nil
	}),
}

var hanaBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a full data backup",
	RunE: hanaRun(func(cmd *cobra.Command, inst *hana.Instance) error {
		if err := inst.CreateBackup(cmd.Context(), backupCreds.database, backupName, backupCreds.credentials()); err != nil {
			return err
		}
		output.Success("Backup %s of %s created", backupName, backupCreds.database)
		return nil
	}),
}

var hanaQueryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run SQL through a database driver and print the result",
	Long: `Runs one statement through the go-hdb driver or the hdbsql client.
With --driver auto the first available driver is used. The port defaults to
the system database port of the instance (3<instance>15).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inst, err := hanaInstance()
		if err != nil {
			return err
		}
		conn, err := hdb.Open(queryOpts.driver)
		if err != nil {
			return err
		}

		common.InfoLog("Querying through the %s driver", conn.Name())

		host := queryOpts.host
		if host == "" {
			host = cfg.Remote
		}
		if host == "" {
			host = "localhost"
		}
		port := queryOpts.port
		if port == 0 {
			if port, err = hdb.DefaultPort(inst.Number()); err != nil {
				return err
			}
		}
		props := hdb.Properties{
			User:       queryOpts.user,
			Password:   queryOpts.password,
			OSUser:     hana.SidAdm(inst.SID()),
			OSPassword: cfg.Password,
			RemoteHost: cfg.Remote,
		}
		if queryOpts.database != "" {
			props.Params = map[string]string{"databaseName": queryOpts.database}
		}

		ctx := cmd.Context()
		if err := conn.Connect(ctx, host, port, props); err != nil {
			return err
		}
		defer func() { _ = conn.Disconnect() }()

		res, err := conn.Query(ctx, args[0])
		if err != nil {
			return err
		}
		return output.Rows(cmd.OutOrStdout(), res.ColumnNames(), res.Records, queryOpts.format)
	},
}

func init() {
	dummyCreds.bind(hanaDummyCmd)

	hdbsqlCreds.bind(hanaHdbsqlCmd)
	hanaHdbsqlCmd.Flags().StringVar(&hdbsqlQuery, "query", "", "Query to execute")
	_ = hanaHdbsqlCmd.MarkFlagRequired("query")

	uf := hanaUserCmd.Flags()
	uf.StringVar(&userKey.keyName, "key-name", "", "Key name")
	uf.StringVar(&userKey.environment, "environment", "", "Database location (host:port)")
	uf.StringVar(&userKey.userName, "user-name", "", "Database user")
	uf.StringVar(&userKey.userPassword, "user-password", "", "Database user password")
	uf.StringVar(&userKey.database, "database", "", "Database name to connect to")
	for _, name := range []string{"key-name", "environment", "user-name", "user-password"} {
		_ = hanaUserCmd.MarkFlagRequired(name)
	}

	backupCreds.bind(hanaBackupCmd)
	hanaBackupCmd.Flags().StringVar(&backupName, "name", "", "Backup file name")
	_ = hanaBackupCmd.MarkFlagRequired("name")
	_ = hanaBackupCmd.MarkFlagRequired("database")

	xf := hanaUninstallCmd.Flags()
	xf.BoolVarP(&uninstallYes, "yes", "y", false, "Do not ask for confirmation")
	xf.StringVar(&uninstallRootUser, "root-user", "", "User running hdblcm (<sid>adm by default)")
	xf.StringVar(&uninstallRootPassword, "root-password", "", "Password of --root-user")
	xf.StringVar(&uninstallFolder, "installation-folder", hana.DefaultInstallationFolder, "HANA shared installation folder")

	qf := hanaQueryCmd.Flags()
	qf.StringVar(&queryOpts.driver, "driver", "auto", "Database driver: auto, "+strings.Join(hdb.ValidDrivers(), ", "))
	qf.StringVar(&queryOpts.host, "host", "", "Database host (--remote or localhost by default)")
	qf.IntVar(&queryOpts.port, "port", 0, "SQL port (3<instance>15 by default)")
	qf.StringVarP(&queryOpts.format, "format", "o", output.FormatTable, "Output format: table, json, csv")
	qf.StringVar(&queryOpts.user, "user-name", "", "Database user")
	qf.StringVar(&queryOpts.password, "user-password", "", "Database user password")
	qf.StringVar(&queryOpts.database, "database", "", "Tenant database name")

	hanaCmd.AddCommand(
		hanaIsRunningCmd, hanaVersionCmd, hanaStartCmd, hanaStopCmd, hanaInfoCmd, hanaKillCmd,
		hanaOverviewCmd, hanaLandscapeCmd, hanaUninstallCmd, hanaDummyCmd, hanaHdbsqlCmd,
		hanaUserCmd, hanaBackupCmd, hanaQueryCmd,
	)
}
