// Package saputils wraps SAP technology tools that are not tied to one
// product, such as SAPCAR.
package saputils

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"
)

// Error is returned when a SAP utility cannot run or fails.
type Error struct {
	Msg      string
	Cmd      string
	ExitCode int
	Kind     error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// SapcarOptions tune ExtractSapcar. OutputDir is created by SAPCAR when
// missing; when empty the archive is extracted in the working directory.
type SapcarOptions struct {
	Options    string
	OutputDir  string
	User       string
	Password   string
	RemoteHost string
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// SapcarCommand builds the SAPCAR extraction command line.
func SapcarCommand(sapcarExe, sarFile string, opts SapcarOptions) string {
	cmd := fmt.Sprintf("%s -xvf %s", sapcarExe, sarFile)
	if opts.Options != "" {
		cmd += " " + opts.Options
	}
	if opts.OutputDir != "" {
		cmd += " -R " + opts.OutputDir
	}
	return cmd
}

// ExtractSapcar unpacks a SAR or CAR archive with SAPCAR. Both files must
// exist locally.
func ExtractSapcar(ctx context.Context, ex shell.Executor, sapcarExe, sarFile string, opts SapcarOptions) (*shell.ProcessResult, error) {
	if !isFile(sapcarExe) {
		return nil, &Error{Msg: fmt.Sprintf("SAPCAR executable '%s' does not exist", sapcarExe), Kind: fs.ErrNotExist}
	}
	if !isFile(sarFile) {
		return nil, &Error{Msg: fmt.Sprintf("The SAR file '%s' does not exist", sarFile), Kind: fs.ErrNotExist}
	}
	common.RegisterSecret(opts.Password)

	res, err := ex.Execute(ctx, shell.Command{
		Cmd:        SapcarCommand(sapcarExe, sarFile, opts),
		User:       opts.User,
		Password:   opts.Password,
		RemoteHost: opts.RemoteHost,
	})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return res, &Error{Msg: "Error running SAPCAR command", Cmd: res.Cmd, ExitCode: res.ExitCode, Kind: common.ErrCommand}
	}
	return res, nil
}
