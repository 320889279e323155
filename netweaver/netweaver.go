// Package netweaver drives SAP Netweaver instances through sapcontrol and
// the sapinst installer.
package netweaver

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"
)

const (
	// UninstallProduct is the sapinst product id that removes an instance.
	UninstallProduct = "NW_Uninstall:GENERIC.IND.PD"
	// SuccessfullyInstalled is the sapinst exit code for success.
	SuccessfullyInstalled = 0
	// UnspecifiedError is the sapinst exit code for a dialog it could not answer.
	UnspecifiedError = 111
)

// ProcessListSuccessCodes are the GetProcessList exit codes that mean the
// instance exists (all running, some stopped, all stopped).
var ProcessListSuccessCodes = []int{0, 3, 4}

// Error is returned when a Netweaver command fails.
type Error struct {
	Msg      string
	Cmd      string
	ExitCode int
	Kind     error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func sapcontrolError(res *shell.ProcessResult) *Error {
	return &Error{
		Msg:      "Error running sapcontrol command: " + res.Cmd,
		Cmd:      res.Cmd,
		ExitCode: res.ExitCode,
		Kind:     common.ErrCommand,
	}
}

// Instance is one Netweaver instance (ASCS, ERS, PAS or AAS).
type Instance struct {
	id     common.Identity
	remote string
	exec   shell.Executor
	logger *slog.Logger
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

// New creates a Netweaver instance facade.
func New(id common.Identity, ex shell.Executor, opts ...Option) *Instance {
	i := &Instance{id: id, exec: ex}
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

func (i *Instance) sidadm() string { return strings.ToLower(i.id.SID) + "adm" }

// SapcontrolOptions target another host or instance. User and Password
// authenticate against a remote sapstartsrv and must be set together.
type SapcontrolOptions struct {
	Host     string
	Inst     string
	User     string
	Password string
}

// SapcontrolCommand builds the sapcontrol command line for function.
func (i *Instance) SapcontrolCommand(function string, opts SapcontrolOptions) (string, error) {
	if opts.User != "" && opts.Password == "" {
		return "", fmt.Errorf("%w: Password must be provided together with user", common.ErrValidation)
	}
	inst := opts.Inst
	if inst == "" {
		inst = i.id.Instance
	}
	var b strings.Builder
	b.WriteString("sapcontrol ")
	if opts.Host != "" {
		fmt.Fprintf(&b, "-host %s ", opts.Host)
	}
	if opts.User != "" {
		common.RegisterSecret(opts.Password)
		fmt.Fprintf(&b, "-user %s %s ", shell.QuoteIfNeeded(opts.User, true), shell.QuoteIfNeeded(opts.Password, true))
	}
	fmt.Fprintf(&b, "-nr %s -function %s", inst, function)
	return b.String(), nil
}

// Sapcontrol runs a sapcontrol function as <sid>adm and returns the result
// without judging its exit code.
func (i *Instance) Sapcontrol(ctx context.Context, function string, opts SapcontrolOptions) (*shell.ProcessResult, error) {
	cmd, err := i.SapcontrolCommand(function, opts)
	if err != nil {
		return nil, err
	}
	return i.exec.Execute(ctx, shell.Command{
		Cmd:        cmd,
		User:       i.sidadm(),
		Password:   i.id.Password,
		RemoteHost: i.remote,
	})
}

func (i *Instance) sapcontrolChecked(ctx context.Context, function string, opts SapcontrolOptions, ok []int) (*shell.ProcessResult, error) {
	res, err := i.Sapcontrol(ctx, function, opts)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(ok, res.ExitCode) {
		return res, sapcontrolError(res)
	}
	return res, nil
}

// ProcessList runs GetProcessList. Exit codes 0, 3 and 4 are accepted.
func (i *Instance) ProcessList(ctx context.Context, opts SapcontrolOptions) (*shell.ProcessResult, error) {
	return i.sapcontrolChecked(ctx, "GetProcessList", opts, ProcessListSuccessCodes)
}

// SystemInstances runs GetSystemInstanceList.
func (i *Instance) SystemInstances(ctx context.Context, opts SapcontrolOptions) (*shell.ProcessResult, error) {
	return i.sapcontrolChecked(ctx, "GetSystemInstanceList", opts, []int{0})
}

// InstanceProperties runs GetInstanceProperties.
func (i *Instance) InstanceProperties(ctx context.Context, opts SapcontrolOptions) (*shell.ProcessResult, error) {
	return i.sapcontrolChecked(ctx, "GetInstanceProperties", opts, []int{0})
}

// DefaultWait is the StartWait/StopWait timeout in seconds.
const DefaultWait = 15

func waitFunction(verb string, wait, delay int) string {
	if wait == 0 {
		return verb
	}
	return fmt.Sprintf("%sWait %d %d", verb, wait, delay)
}

// Start starts the instance, waiting up to wait seconds. A zero wait returns
// as soon as the start is requested.
func (i *Instance) Start(ctx context.Context, wait, delay int, opts SapcontrolOptions) (*shell.ProcessResult, error) {
	return i.sapcontrolChecked(ctx, waitFunction("Start", wait, delay), opts, []int{0})
}

// Stop stops the instance, waiting up to wait seconds. A zero wait returns
// as soon as the stop is requested.
func (i *Instance) Stop(ctx context.Context, wait, delay int, opts SapcontrolOptions) (*shell.ProcessResult, error) {
	return i.sapcontrolChecked(ctx, waitFunction("Stop", wait, delay), opts, []int{0})
}
