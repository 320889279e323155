package netweaver

import (
	"context"
	"fmt"
	"regexp"
	"slices"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"
)

// Kind is the role of a Netweaver instance as passed on the command line.
type Kind string

const (
	KindAny  Kind = ""
	KindASCS Kind = "ascs"
	KindERS  Kind = "ers"
	KindCI   Kind = "ci"
	KindDI   Kind = "di"
)

// GetProcessList lines that identify each role.
var (
	msgServerPattern     = regexp.MustCompile(`msg_server, MessageServer,.*`)
	enserverPattern      = regexp.MustCompile(`enserver, EnqueueServer,.*`)
	enqServerPattern     = regexp.MustCompile(`enq_server, Enqueue Server 2,.*`)
	enrepserverPattern   = regexp.MustCompile(`enrepserver, EnqueueReplicator,.*`)
	enqReplicatorPattern = regexp.MustCompile(`enq_replicator, Enqueue Replicator 2,.*`)

	appServerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`disp\+work, Dispatcher,.*`),
		regexp.MustCompile(`igswd_mt, IGS Watchdog,.*`),
		regexp.MustCompile(`gwrd, Gateway,.*`),
		regexp.MustCompile(`icman, ICM,.*`),
	}
)

func has(re *regexp.Regexp, output string) bool {
	return shell.FindPattern(re, output) != nil
}

// IsASCS reports whether a process list shows a message server and an
// enqueue server of either generation.
func IsASCS(processes string) bool {
	return has(msgServerPattern, processes) &&
		(has(enserverPattern, processes) || has(enqServerPattern, processes))
}

// IsERS reports whether a process list shows an enqueue replicator.
func IsERS(processes string) bool {
	return has(enrepserverPattern, processes) || has(enqReplicatorPattern, processes)
}

// IsAppServer reports whether a process list shows every ABAP application
// server process.
func IsAppServer(processes string) bool {
	for _, re := range appServerPatterns {
		if !has(re, processes) {
			return false
		}
	}
	return true
}

func invalidKind(kind Kind) error {
	return fmt.Errorf("%w: provided sap instance type is not valid: %s", common.ErrValidation, kind)
}

// IsInstalled reports whether the instance exists and, when kind is set,
// whether it runs the processes of that role.
func (i *Instance) IsInstalled(ctx context.Context, kind Kind) (bool, error) {
	res, err := i.Sapcontrol(ctx, "GetProcessList", SapcontrolOptions{})
	if err != nil {
		return false, err
	}
	if !slices.Contains(ProcessListSuccessCodes, res.ExitCode) {
		return false, nil
	}
	switch kind {
	case KindAny:
		return true, nil
	case KindASCS:
		return IsASCS(res.Output), nil
	case KindERS:
		return IsERS(res.Output), nil
	case KindCI, KindDI:
		return IsAppServer(res.Output), nil
	default:
		return false, invalidKind(kind)
	}
}

// EnsaVersion returns 1 or 2 depending on which enqueue server generation
// an ASCS or ERS instance runs.
func (i *Instance) EnsaVersion(ctx context.Context, kind Kind) (int, error) {
	var v1, v2 *regexp.Regexp
	var missing string
	switch kind {
	case KindASCS:
		v1, v2, missing = enserverPattern, enqServerPattern, "ASCS not installed or found"
	case KindERS:
		v1, v2, missing = enrepserverPattern, enqReplicatorPattern, "ERS not installed or found"
	default:
		return 0, invalidKind(kind)
	}
	res, err := i.ProcessList(ctx, SapcontrolOptions{})
	if err != nil {
		return 0, err
	}
	switch {
	case has(v1, res.Output):
		return 1, nil
	case has(v2, res.Output):
		return 2, nil
	}
	return 0, &Error{Msg: missing, Cmd: res.Cmd, ExitCode: res.ExitCode, Kind: common.ErrValidation}
}
