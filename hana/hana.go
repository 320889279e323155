// Package hana drives a SAP HANA database instance through its vendor
// command line tools (HDB, hdbnsutil, hdbuserstore, hdbsql, hdblcm).
package hana

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"
)

const (
	// PathTemplate is the instance directory, formatted with SID and instance.
	PathTemplate = "/usr/sap/%s/HDB%s/"
	// InstallExecTemplate locates hdblcm inside an extracted software folder.
	InstallExecTemplate = "%s/DATA_UNITS/HDB_LCM_LINUX_X86_64/hdblcm"
	// DefaultInstallationFolder is where hdblcm installs the shared files.
	DefaultInstallationFolder = "/hana/shared"
)

// SyncModes are the replication modes a secondary can run in.
var SyncModes = []string{"sync", "syncmem", "async"}

// Error is returned when a HANA command fails or its output is unusable.
type Error struct {
	Msg      string
	Cmd      string
	ExitCode int
	Kind     error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func commandError(res *shell.ProcessResult) *Error {
	return &Error{
		Msg:      "Error running hana command: " + res.Cmd,
		Cmd:      res.Cmd,
		ExitCode: res.ExitCode,
		Kind:     common.ErrCommand,
	}
}

// SidAdm returns the OS user owning a HANA system.
func SidAdm(sid string) string {
	return strings.ToLower(sid) + "adm"
}

// Instance is one HANA database instance. Every command runs as <sid>adm,
// over ssh when a remote host is set.
type Instance struct {
	id     common.Identity
	remote string
	exec   shell.Executor
	logger *slog.Logger
	retry  func(timeout, interval int) shell.Retrier
}

// Option customises an Instance.
type Option func(*Instance)

// WithRemoteHost runs every command on host through ssh instead of su.
func WithRemoteHost(host string) Option {
	return func(i *Instance) { i.remote = host }
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Instance) { i.logger = logger }
}

// WithRetrier overrides how retry loops are built. Used in tests to inject a clock.
func WithRetrier(build func(timeout, interval int) shell.Retrier) Option {
	return func(i *Instance) { i.retry = build }
}

// New creates a HANA instance facade.
func New(id common.Identity, ex shell.Executor, opts ...Option) *Instance {
	i := &Instance{id: id, exec: ex, retry: secondsRetrier}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = common.InstanceLogger(i.logger, id.SID, id.Instance)
	return i
}

// SID returns the system id.
func (i *Instance) SID() string { return i.id.SID }

// Number returns the two digit instance number.
func (i *Instance) Number() string { return i.id.Instance }

// RemoteHost returns the ssh target, empty for local execution.
func (i *Instance) RemoteHost() string { return i.remote }

// Path returns the instance directory.
func (i *Instance) Path() string {
	return fmt.Sprintf(PathTemplate, strings.ToUpper(i.id.SID), i.id.Instance)
}

func (i *Instance) sidadm() string { return SidAdm(i.id.SID) }

func (i *Instance) execute(ctx context.Context, cmd string) (*shell.ProcessResult, error) {
	return i.exec.Execute(ctx, shell.Command{
		Cmd:        cmd,
		User:       i.sidadm(),
		Password:   i.id.Password,
		RemoteHost: i.remote,
	})
}

// Run executes cmd as <sid>adm and fails on a nonzero exit code.
func (i *Instance) Run(ctx context.Context, cmd string) (*shell.ProcessResult, error) {
	res, err := i.execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return res, commandError(res)
	}
	return res, nil
}

// RunUnchecked executes cmd as <sid>adm and leaves the exit code to the caller.
func (i *Instance) RunUnchecked(ctx context.Context, cmd string) (*shell.ProcessResult, error) {
	return i.execute(ctx, cmd)
}

// --- Lifecycle ---

// IsInstalled reports whether "HDB info" succeeds. A launch failure, such as
// a missing <sid>adm user, means not installed.
func (i *Instance) IsInstalled(ctx context.Context) bool {
	res, err := i.execute(ctx, "HDB info")
	if err != nil {
		i.logger.Error(err.Error())
		return false
	}
	return res.ExitCode == 0
}

// IsRunning checks for the hdb daemon process.
func (i *Instance) IsRunning(ctx context.Context) (bool, error) {
	cmd := fmt.Sprintf("pidof hdb.sap%s_HDB%s", strings.ToUpper(i.id.SID), i.id.Instance)
	res, err := i.exec.Execute(ctx, shell.Command{Cmd: cmd, RemoteHost: i.remote, User: i.remoteUser()})
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// remoteUser is the ssh login for commands that need no user switch locally.
func (i *Instance) remoteUser() string {
	if i.remote == "" {
		return ""
	}
	return i.sidadm()
}

var versionPattern = regexp.MustCompile(`\s+version:\s+(\d+.\d+.\d+).*`)

// ParseVersion extracts the X.Y.Z version from "HDB version" output.
func ParseVersion(output string) (string, error) {
	m := shell.FindPattern(versionPattern, output)
	if m == nil {
		return "", &Error{Msg: "Version pattern not found in command output", Kind: common.ErrParse}
	}
	return m[1], nil
}

// Version returns the installed HANA version.
func (i *Instance) Version(ctx context.Context) (string, error) {
	res, err := i.Run(ctx, "HDB version")
	if err != nil {
		return "", err
	}
	return ParseVersion(res.Output)
}

// Start starts the instance.
func (i *Instance) Start(ctx context.Context) error {
	_, err := i.Run(ctx, "HDB start")
	return err
}

// Stop stops the instance.
func (i *Instance) Stop(ctx context.Context) error {
	_, err := i.Run(ctx, "HDB stop")
	return err
}

// Info returns the "HDB info" process listing.
func (i *Instance) Info(ctx context.Context) (*shell.ProcessResult, error) {
	return i.Run(ctx, "HDB info")
}

// Kill hard-kills every instance process.
func (i *Instance) Kill(ctx context.Context) error {
	_, err := i.Run(ctx, "HDB kill-9")
	return err
}

// Overview runs systemOverview.py.
func (i *Instance) Overview(ctx context.Context) (*shell.ProcessResult, error) {
	return i.Run(ctx, "HDBSettings.sh systemOverview.py")
}

// Landscape runs landscapeHostConfiguration.py.
func (i *Instance) Landscape(ctx context.Context) (*shell.ProcessResult, error) {
	return i.Run(ctx, "HDBSettings.sh landscapeHostConfiguration.py")
}
