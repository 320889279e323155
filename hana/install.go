package hana

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"
)

// InstallCommand is the hdblcm binary of an extracted HANA software folder.
func InstallCommand(softwarePath string) string {
	return fmt.Sprintf(InstallExecTemplate, softwarePath)
}

func runAsRoot(ctx context.Context, ex shell.Executor, cmd, rootUser, rootPassword, msg string) error {
	common.RegisterSecret(rootPassword)
	res, err := ex.Execute(ctx, shell.Command{Cmd: cmd, User: rootUser, Password: rootPassword})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &Error{Msg: msg, Cmd: res.Cmd, ExitCode: res.ExitCode, Kind: common.ErrCommand}
	}
	return nil
}

// CreateConfFile dumps an hdblcm configuration template to confFile.
func CreateConfFile(ctx context.Context, ex shell.Executor, softwarePath, confFile, rootUser, rootPassword string) (string, error) {
	cmd := fmt.Sprintf("%s --action=install --dump_configfile_template=%s", InstallCommand(softwarePath), confFile)
	if err := runAsRoot(ctx, ex, cmd, rootUser, rootPassword, "SAP HANA configuration file creation failed"); err != nil {
		return "", err
	}
	return confFile, nil
}

// Install runs a batch hdblcm installation driven by confFile.
func Install(ctx context.Context, ex shell.Executor, softwarePath, confFile, rootUser, rootPassword string) error {
	cmd := fmt.Sprintf("%s -b --configfile=%s", InstallCommand(softwarePath), confFile)
	return runAsRoot(ctx, ex, cmd, rootUser, rootPassword, "SAP HANA installation failed")
}

// Uninstall removes the instance with the hdblcm copy under
// installationFolder (DefaultInstallationFolder when empty).
func (i *Instance) Uninstall(ctx context.Context, rootUser, rootPassword, installationFolder string) error {
	if installationFolder == "" {
		installationFolder = DefaultInstallationFolder
	}
	cmd := fmt.Sprintf("%s/%s/hdblcm/hdblcm --uninstall -b", installationFolder, strings.ToUpper(i.id.SID))
	common.RegisterSecret(rootPassword)
	res, err := i.exec.Execute(ctx, shell.Command{Cmd: cmd, User: rootUser, Password: rootPassword, RemoteHost: i.remote})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &Error{Msg: "SAP HANA uninstallation failed", Cmd: res.Cmd, ExitCode: res.ExitCode, Kind: common.ErrCommand}
	}
	return nil
}

// UpdateConfFile rewrites "key=..." lines of an hdblcm configuration file in
// place. Keys missing from the file are left out.
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
		re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(k) + `=.*`)
		content = re.ReplaceAllLiteralString(content, k+"="+values[k])
	}
	if err := os.WriteFile(confFile, []byte(content), info.Mode().Perm()); err != nil {
		return "", err
	}
	return confFile, nil
}
