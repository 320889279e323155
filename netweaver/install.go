package netweaver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"
)

const defaultInstallDir = "/tmp/sapinst_instdir"

// Patterns read from sapinst input parameter files and installer output.
var (
	sidadmPasswordPattern = regexp.MustCompile(`nwUsers.sidadmPassword += +(.*)`)
	profileDirPattern     = regexp.MustCompile(`NW_readProfileDir.profileDir += +.*/(.*)/profile`)
	ersNumberPattern      = regexp.MustCompile(`nw_instance_ers.ersInstanceNumber += +(.*)`)
	stopInstanceDialog    = regexp.MustCompile(`<html><p>Error when stopping instance.</p><p>Cannot stop instance <i>(.*)</i> on host <i>(.*)</i>.</p><p>Stop the instance manually and choose <i>OK</i> to continue.</html>`)
	ascsInstanceLine      = regexp.MustCompile(`(.*), (.*), (.*), (.*), (.*), MESSAGESERVER\|ENQUE, GREEN`)
)

// InstallOptions describe one unattended sapinst run.
type InstallOptions struct {
	SoftwarePath string
	VirtualHost  string
	ProductID    string
	ConfFile     string
	RootUser     string
	RootPassword string
	// Cwd is the sapinst working directory. It is emptied, apart from
	// start_dir.cd, before the run.
	Cwd        string
	RemoteHost string
}

func (o InstallOptions) command() string {
	cmd := fmt.Sprintf("%s/sapinst SAPINST_USE_HOSTNAME=%s SAPINST_EXECUTE_PRODUCT_ID=%s "+
		"SAPINST_SKIP_SUCCESSFULLY_FINISHED_DIALOG=true SAPINST_START_GUISERVER=false "+
		"SAPINST_INPUT_PARAMETERS_URL=%s",
		o.SoftwarePath, o.VirtualHost, o.ProductID, o.ConfFile)
	if o.Cwd != "" {
		cmd += " SAPINST_CWD=" + o.Cwd
	}
	return cmd
}

func (o InstallOptions) asRoot(cmd string) shell.Command {
	return shell.Command{Cmd: cmd, User: o.RootUser, Password: o.RootPassword, RemoteHost: o.RemoteHost}
}

func installFailed(o InstallOptions, res *shell.ProcessResult) *Error {
	where := defaultInstallDir + " default folder"
	if o.Cwd != "" {
		where = o.Cwd
	}
	return &Error{
		Msg: "SAP Netweaver installation failed. Please check swpm installation logs" +
			"(sapinst_dev.log and sapinst.log) located at " + where + " for further information",
		Cmd:      res.Cmd,
		ExitCode: res.ExitCode,
		Kind:     common.ErrCommand,
	}
}

// cleanCwd removes everything in the sapinst working directory except the
// start_dir.cd marker.
func cleanCwd(ctx context.Context, ex shell.Executor, o InstallOptions) error {
	res, err := ex.Execute(ctx, o.asRoot(fmt.Sprintf("printf '%%q ' %s/*", o.Cwd)))
	if err != nil {
		return err
	}
	rest := strings.TrimSpace(strings.ReplaceAll(res.Output, o.Cwd+"/start_dir.cd", ""))
	if rest == "" {
		return nil
	}
	_, err = ex.Execute(ctx, o.asRoot("rm -rf "+rest))
	return err
}

func runInstaller(ctx context.Context, ex shell.Executor, o InstallOptions) (*shell.ProcessResult, error) {
	common.RegisterSecret(o.RootPassword)
	if o.Cwd != "" {
		if err := cleanCwd(ctx, ex, o); err != nil {
			return nil, err
		}
	}
	return ex.Execute(ctx, o.asRoot(o.command()))
}

// Install runs sapinst unattended with the given input parameter file.
func Install(ctx context.Context, ex shell.Executor, o InstallOptions) error {
	res, err := runInstaller(ctx, ex, o)
	if err != nil {
		return err
	}
	if res.ExitCode != SuccessfullyInstalled {
		return installFailed(o, res)
	}
	return nil
}

// ERSOptions tune InstallERS. ASCSPassword defaults to the <sid>adm password
// found in the ERS input parameter file. Interval defaults to 5 seconds.
type ERSOptions struct {
	ASCSPassword string
	Timeout      int
	Interval     int
}

// newRetrier is swapped in tests to inject a clock.
var newRetrier = func(timeout, interval int) shell.Retrier {
	return shell.Retrier{
		Timeout:  time.Duration(timeout) * time.Second,
		Interval: time.Duration(interval) * time.Second,
	}
}

func ascsRestartNeeded(res *shell.ProcessResult) bool {
	return res.ExitCode == UnspecifiedError && shell.FindPattern(stopInstanceDialog, res.Output) != nil
}

// InstallERS installs an ERS instance. sapinst stops when the ASCS instance
// cannot be restarted for it, so the run is retried until it succeeds or
// asks for that restart, which is then done through sapcontrol.
func InstallERS(ctx context.Context, ex shell.Executor, o InstallOptions, eo ERSOptions) error {
	match, err := AttributeFromFile(o.ConfFile, sidadmPasswordPattern)
	if err != nil {
		return err
	}
	if match == nil {
		return &Error{Msg: "nwUsers.sidadmPassword not found in " + o.ConfFile, Kind: common.ErrParse}
	}
	ersPassword := strings.TrimSpace(match[1])
	ascsPassword := eo.ASCSPassword
	if ascsPassword == "" {
		ascsPassword = ersPassword
	}
	common.RegisterSecret(ersPassword)
	common.RegisterSecret(ascsPassword)
	interval := eo.Interval
	if interval == 0 {
		interval = 5
	}

	res, err := newRetrier(eo.Timeout, interval).Until(ctx,
		func(ctx context.Context) (*shell.ProcessResult, error) { return runInstaller(ctx, ex, o) },
		func(r *shell.ProcessResult) bool {
			return r.ExitCode == SuccessfullyInstalled || ascsRestartNeeded(r)
		},
		nil,
	)
	if err != nil {
		var te *shell.TimeoutError
		if errors.As(err, &te) {
			e := &Error{
				Msg:  fmt.Sprintf("SAP Netweaver ERS installation failed after %d seconds", eo.Timeout),
				Kind: common.ErrTimeout,
			}
			if res != nil {
				e.Cmd, e.ExitCode = res.Cmd, res.ExitCode
			}
			return e
		}
		return err
	}
	if ascsRestartNeeded(res) {
		return restartASCS(ctx, ex, o, ersPassword, ascsPassword)
	}
	return nil
}

// restartASCS finds the ASCS instance through the freshly installed ERS
// sapstartsrv and bounces it so sapinst can finish.
func restartASCS(ctx context.Context, ex shell.Executor, o InstallOptions, ersPassword, ascsPassword string) error {
	sidMatch, err := AttributeFromFile(o.ConfFile, profileDirPattern)
	if err != nil {
		return err
	}
	instMatch, err := AttributeFromFile(o.ConfFile, ersNumberPattern)
	if err != nil {
		return err
	}
	if sidMatch == nil || instMatch == nil {
		return &Error{Msg: "ERS sid or instance number not found in " + o.ConfFile, Kind: common.ErrParse}
	}
	sid := strings.ToLower(sidMatch[1])
	id, err := common.NewIdentity(sid, strings.TrimSpace(instMatch[1]), ersPassword)
	if err != nil {
		return err
	}
	ers := New(id, ex, WithRemoteHost(o.RemoteHost))

	res, err := ers.Sapcontrol(ctx, "GetSystemInstanceList", SapcontrolOptions{})
	if err != nil {
		return err
	}
	ascs := shell.FindPattern(ascsInstanceLine, res.Output)
	if ascs == nil {
		return &Error{Msg: "ASCS instance not found in the system instance list", Cmd: res.Cmd, ExitCode: res.ExitCode, Kind: common.ErrParse}
	}
	target := SapcontrolOptions{Host: ascs[1], Inst: ascs[2], User: sid + "adm", Password: ascsPassword}
	if _, err := ers.Stop(ctx, DefaultWait, 0, target); err != nil {
		return err
	}
	_, err = ers.Start(ctx, DefaultWait, 0, target)
	return err
}

// Uninstall runs the generic sapinst uninstall product and removes the
// <sid>adm user afterwards.
func (i *Instance) Uninstall(ctx context.Context, o InstallOptions) error {
	o.ProductID = UninstallProduct
	if o.RemoteHost == "" {
		o.RemoteHost = i.remote
	}
	if err := Install(ctx, i.exec, o); err != nil {
		return err
	}
	return shell.RemoveUser(ctx, i.exec, i.sidadm(), true, o.RootUser, o.RootPassword, o.RemoteHost)
}

// UpdateConfFile sets "key = value" entries of a sapinst input parameter
// file in place. Keys missing from the file are appended.
func UpdateConfFile(confFile string, values map[string]string) (string, error) {
	info, err := os.Stat(confFile)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(confFile)
	if err != nil {
		return "", err
	}
	content := string(data)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		entry := k + " = " + values[k]
		if strings.Contains(content, k) {
			re := regexp.MustCompile(regexp.QuoteMeta(k) + `\s+=.*`)
			content = re.ReplaceAllLiteralString(content, entry)
			continue
		}
		content += "\n" + entry
	}
	if err := os.WriteFile(confFile, []byte(content), info.Mode().Perm()); err != nil {
		return "", err
	}
	return confFile, nil
}

// AttributeFromFile returns the first line of file matching pattern, split
// into its groups, or nil.
func AttributeFromFile(file string, pattern *regexp.Regexp) ([]string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return shell.FindPattern(pattern, string(data)), nil
}
