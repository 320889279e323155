package hana

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"
)

// SrState is the system replication role observed on a node.
type SrState int

const (
	SrStateDisabled  SrState = 0
	SrStatePrimary   SrState = 1
	SrStateSecondary SrState = 2
)

func (s SrState) String() string {
	switch s {
	case SrStatePrimary:
		return "PRIMARY"
	case SrStateSecondary:
		return "SECONDARY"
	}
	return "DISABLED"
}

// SrStatusReturnCode is the exit code of systemReplicationStatus.py.
type SrStatusReturnCode int

const (
	SrStatusNone         SrStatusReturnCode = 10
	SrStatusError        SrStatusReturnCode = 11
	SrStatusUnknown      SrStatusReturnCode = 12
	SrStatusInitializing SrStatusReturnCode = 13
	SrStatusSyncing      SrStatusReturnCode = 14
	SrStatusActive       SrStatusReturnCode = 15
)

// SrStatusFromCode maps an exit code to its status, UNKNOWN when unrecognized.
func SrStatusFromCode(code int) SrStatusReturnCode {
	switch s := SrStatusReturnCode(code); s {
	case SrStatusNone, SrStatusError, SrStatusUnknown, SrStatusInitializing, SrStatusSyncing, SrStatusActive:
		return s
	}
	return SrStatusUnknown
}

func (s SrStatusReturnCode) String() string {
	switch s {
	case SrStatusNone:
		return "NONE"
	case SrStatusError:
		return "ERROR"
	case SrStatusInitializing:
		return "INITIALIZING"
	case SrStatusSyncing:
		return "SYNCING"
	case SrStatusActive:
		return "ACTIVE"
	}
	return "UNKNOWN"
}

// SrStatus is the parsed result of systemReplicationStatus.py.
type SrStatus struct {
	Status  SrStatusReturnCode
	Details *shell.Fields
}

// Register exit codes from hdbnsutil -sr_register.
const (
	SuccessfullyRegistered = 0
	SSFSDifferentError     = 149
)

var (
	primaryPattern   = regexp.MustCompile(`.*mode: primary.*`)
	secondaryPattern = regexp.MustCompile(fmt.Sprintf(`.*mode: (%s)`, strings.Join(SyncModes, "|")))
)

// ClassifySrState maps "hdbnsutil -sr_state" output to a role. Primary is
// checked first; anything that is neither primary nor a known sync mode is
// DISABLED.
func ClassifySrState(output string) SrState {
	if shell.FindPattern(primaryPattern, output) != nil {
		return SrStatePrimary
	}
	if shell.FindPattern(secondaryPattern, output) != nil {
		return SrStateSecondary
	}
	return SrStateDisabled
}

// SrState reads the replication role from the node configuration, which may
// lag the actual state.
func (i *Instance) SrState(ctx context.Context) (SrState, error) {
	res, err := i.Run(ctx, "hdbnsutil -sr_state")
	if err != nil {
		return SrStateDisabled, err
	}
	return ClassifySrState(res.Output), nil
}

// SrStateDetails returns the "key: value" lines of "hdbnsutil -sr_state"
// that precede the host and site mappings.
func (i *Instance) SrStateDetails(ctx context.Context) (*shell.Fields, error) {
	res, err := i.Run(ctx, "hdbnsutil -sr_state")
	if err != nil {
		return nil, err
	}
	return shell.ParseFields(res.Output), nil
}

// SrStateRaw runs "hdbnsutil -sr_state", optionally in sapcontrol format.
func (i *Instance) SrStateRaw(ctx context.Context, sapcontrol bool) (*shell.ProcessResult, error) {
	return i.Run(ctx, "hdbnsutil -sr_state"+sapcontrolSuffix(sapcontrol))
}

// SrStatusRaw runs systemReplicationStatus.py without checking its exit code.
func (i *Instance) SrStatusRaw(ctx context.Context, sapcontrol bool) (*shell.ProcessResult, error) {
	return i.RunUnchecked(ctx, "HDBSettings.sh systemReplicationStatus.py"+sapcontrolSuffix(sapcontrol))
}

func sapcontrolSuffix(on bool) string {
	if on {
		return " --sapcontrol=1"
	}
	return ""
}

// SrEnablePrimary enables replication on this node as primary site name.
func (i *Instance) SrEnablePrimary(ctx context.Context, name string) error {
	_, err := i.Run(ctx, "hdbnsutil -sr_enable --name="+name)
	return err
}

// SrDisablePrimary disables replication on the primary.
func (i *Instance) SrDisablePrimary(ctx context.Context) error {
	_, err := i.Run(ctx, "hdbnsutil -sr_disable")
	return err
}

// RegisterOptions tunes SrRegisterSecondary. Timeout and Interval are in
// seconds; a zero Timeout makes a single attempt. A zero Interval means 5.
type RegisterOptions struct {
	PrimaryPassword string
	Timeout         int
	Interval        int
}

// SrRegisterSecondary registers this node as secondary of remoteHost and
// retries until hdbnsutil succeeds or the timeout passes. When the primary
// reports different SSFS keys, they are copied from it before the next try.
func (i *Instance) SrRegisterSecondary(ctx context.Context, name, remoteHost, remoteInstance, replicationMode, operationMode string, opts RegisterOptions) error {
	remoteInstance, err := common.PadInstance(remoteInstance)
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf("hdbnsutil -sr_register --name=%s --remoteHost=%s --remoteInstance=%s --replicationMode=%s --operationMode=%s",
		name, remoteHost, remoteInstance, replicationMode, operationMode)

	interval := opts.Interval
	if interval <= 0 {
		interval = 5
	}
	retrier := i.retry(opts.Timeout, interval)
	_, err = retrier.Until(ctx,
		func(ctx context.Context) (*shell.ProcessResult, error) { return i.RunUnchecked(ctx, cmd) },
		func(res *shell.ProcessResult) bool { return res.ExitCode == SuccessfullyRegistered },
		func(ctx context.Context, last *shell.ProcessResult) error {
			if last.ExitCode != SSFSDifferentError {
				return nil
			}
			i.logger.Info("SSFS files differ from the primary, copying them from " + remoteHost)
			return i.CopySSFSFiles(ctx, remoteHost, opts.PrimaryPassword)
		})

	var te *shell.TimeoutError
	if errors.As(err, &te) {
		return &Error{
			Msg:      fmt.Sprintf("System replication registration process failed after %d seconds", int(te.Elapsed.Seconds())),
			Cmd:      cmd,
			ExitCode: te.Last.ExitCode,
			Kind:     common.ErrTimeout,
		}
	}
	return err
}

// SrUnregisterSecondary unregisters this secondary from primaryName.
func (i *Instance) SrUnregisterSecondary(ctx context.Context, primaryName string) error {
	_, err := i.Run(ctx, "hdbnsutil -sr_unregister --name="+primaryName)
	return err
}

// SrChangeModeSecondary switches the replication mode of a secondary.
func (i *Instance) SrChangeModeSecondary(ctx context.Context, mode string) error {
	_, err := i.Run(ctx, "hdbnsutil -sr_changemode --mode="+mode)
	return err
}

// SrCleanup removes the replication configuration.
func (i *Instance) SrCleanup(ctx context.Context, force bool) error {
	cmd := "hdbnsutil -sr_cleanup"
	if force {
		cmd += " --force"
	}
	_, err := i.Run(ctx, cmd)
	return err
}

// SrTakeover promotes this secondary to primary.
func (i *Instance) SrTakeover(ctx context.Context) error {
	_, err := i.Run(ctx, "hdbnsutil -sr_takeover")
	return err
}

// overallStatusKey is the summary line of systemReplicationStatus.py.
const overallStatusKey = "overall system replication status"

// SrStatus runs systemReplicationStatus.py. The status comes from the exit
// code; Details holds the "key: value" lines of its output.
//
// The script is known to exit ACTIVE for replication that is not working.
// That case is logged as a warning and the status is kept as reported.
func (i *Instance) SrStatus(ctx context.Context) (*SrStatus, error) {
	res, err := i.SrStatusRaw(ctx, false)
	if err != nil {
		return nil, err
	}
	status := &SrStatus{
		Status:  SrStatusFromCode(res.ExitCode),
		Details: shell.ParseFields(res.Output),
	}
	if overall, ok := status.Details.Get(overallStatusKey); ok &&
		status.Status == SrStatusActive && !strings.EqualFold(overall, SrStatusActive.String()) {
		i.logger.Warn(fmt.Sprintf("systemReplicationStatus.py returned ACTIVE but reports %s: %s", overallStatusKey, overall))
	}
	return status, nil
}

const ssfsPathTemplate = "/usr/sap/%s/SYS/global/security/rsecssfs"

// CopySSFSFiles copies the SSFS data and key files from remoteHost so this
// node can register against it. remotePassword is the <sid>adm password there.
func (i *Instance) CopySSFSFiles(ctx context.Context, remoteHost, remotePassword string) error {
	sid := strings.ToUpper(i.id.SID)
	base := fmt.Sprintf(ssfsPathTemplate, sid)
	files := []string{
		fmt.Sprintf("%s/data/SSFS_%s.DAT", base, sid),
		fmt.Sprintf("%s/key/SSFS_%s.KEY", base, sid),
	}
	common.RegisterSecret(remotePassword)
	for _, f := range files {
		cmd := fmt.Sprintf("scp -o StrictHostKeyChecking=no %s@%s:%s %s", i.sidadm(), remoteHost, f, f)
		res, err := i.exec.Execute(ctx, shell.Command{
			Cmd:        cmd,
			User:       i.sidadm(),
			Password:   remotePassword,
			RemoteHost: i.remote,
		})
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return commandError(res)
		}
	}
	return nil
}

func secondsRetrier(timeout, interval int) shell.Retrier {
	return shell.Retrier{
		Timeout:  time.Duration(timeout) * time.Second,
		Interval: time.Duration(interval) * time.Second,
	}
}
