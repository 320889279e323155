package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/metrics"

	"github.com/kballard/go-shellquote"
)

// ProcessResult is the outcome of one command. Cmd is the command as the
// caller wrote it, before any su or ssh wrapping. A nonzero ExitCode is not
// an error at this layer.
type ProcessResult struct {
	Cmd      string
	ExitCode int
	Output   string
	Err      string
}

// Command describes one invocation. User switches the OS user with su, or
// names the ssh login when RemoteHost is set. Password is fed over stdin.
type Command struct {
	Cmd        string
	User       string
	Password   string
	RemoteHost string
}

// Executor runs commands. *Runner is the production implementation.
type Executor interface {
	Execute(ctx context.Context, c Command) (*ProcessResult, error)
}

// commandContext is swapped in tests to re-exec the test binary.
var commandContext = exec.CommandContext

// Runner executes commands as local child processes.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a runner logging through logger (slog.Default when nil).
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// FormatSuCommand wraps cmd to run as user through a login shell.
func FormatSuCommand(cmd, user string) string {
	return fmt.Sprintf(`su -lc "%s" %s`, cmd, user)
}

// FormatRemoteCommand wraps cmd to run as user on host through ssh and a
// login shell.
func FormatRemoteCommand(cmd, host, user string) (string, error) {
	if user == "" {
		return "", fmt.Errorf("%w: user must be provided", common.ErrValidation)
	}
	return fmt.Sprintf(`ssh %s@%s "bash --login -c '%s'"`, user, host, cmd), nil
}

// Wrap returns the command line that will actually be tokenized. Remote
// execution takes precedence over a local user switch.
func Wrap(c Command) (string, error) {
	switch {
	case c.RemoteHost != "":
		return FormatRemoteCommand(c.Cmd, c.RemoteHost, c.User)
	case c.User != "":
		return FormatSuCommand(c.Cmd, c.User), nil
	}
	return c.Cmd, nil
}

// Execute runs c and blocks until the child exits. Launch failures are
// returned as errors; exit codes are left for the caller to interpret.
func (r *Runner) Execute(ctx context.Context, c Command) (*ProcessResult, error) {
	r.logger.Debug(fmt.Sprintf("Executing command \"%s\" with user %s", c.Cmd, c.User))

	line, err := Wrap(c)
	if err != nil {
		return nil, err
	}
	if line != c.Cmd {
		r.logger.Debug(fmt.Sprintf("Command updated to \"%s\"", line))
	}

	args, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot tokenize %q: %v", common.ErrValidation, c.Cmd, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: empty command", common.ErrValidation)
	}

	proc := commandContext(ctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr
	if c.Password != "" {
		proc.Stdin = strings.NewReader(c.Password)
	}

	tool := toolName(c.Cmd)
	start := time.Now()
	exitCode := 0
	if err := proc.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			metrics.RecordCommand(tool, "error", time.Since(start))
			return nil, fmt.Errorf("running %q: %w", c.Cmd, err)
		}
		exitCode = exitErr.ExitCode()
	}
	elapsed := time.Since(start)

	if !utf8.Valid(stdout.Bytes()) || !utf8.Valid(stderr.Bytes()) {
		metrics.RecordCommand(tool, "error", elapsed)
		return nil, fmt.Errorf("decoding output of %q: invalid UTF-8", c.Cmd)
	}

	result := &ProcessResult{
		Cmd:      c.Cmd,
		ExitCode: exitCode,
		Output:   stdout.String(),
		Err:      stderr.String(),
	}
	r.logResult(result)

	status := "success"
	if exitCode != 0 {
		status = "nonzero"
	}
	metrics.RecordCommand(tool, status, elapsed)
	return result, nil
}

func (r *Runner) logResult(res *ProcessResult) {
	for _, line := range strings.Split(res.Output, "\n") {
		if strings.TrimSpace(line) != "" {
			r.logger.Info(line)
		}
	}
	for _, line := range strings.Split(res.Err, "\n") {
		if strings.TrimSpace(line) != "" {
			r.logger.Error(line)
		}
	}
}

// toolName is the metrics label for a command: the base name of its first word.
func toolName(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return "unknown"
	}
	return filepath.Base(fields[0])
}
