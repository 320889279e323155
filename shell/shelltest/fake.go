// Package shelltest provides a scripted shell.Executor for facade tests.
package shelltest

import (
	"context"
	"sync"

	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"
)

// Reply is one scripted response. A non-nil Error simulates a launch failure.
type Reply struct {
	ExitCode int
	Output   string
	Err      string
	Error    error
}

// Executor records every command and answers from a queue of replies. When
// the queue is empty it answers exit code 0 with no output.
type Executor struct {
	mu      sync.Mutex
	calls   []shell.Command
	replies []Reply
}

// New returns an executor that answers with replies in order.
func New(replies ...Reply) *Executor {
	return &Executor{replies: replies}
}

// Push appends replies to the queue.
func (e *Executor) Push(replies ...Reply) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replies = append(e.replies, replies...)
}

func (e *Executor) Execute(_ context.Context, c shell.Command) (*shell.ProcessResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, c)

	var r Reply
	if len(e.replies) > 0 {
		r, e.replies = e.replies[0], e.replies[1:]
	}
	if r.Error != nil {
		return nil, r.Error
	}
	return &shell.ProcessResult{Cmd: c.Cmd, ExitCode: r.ExitCode, Output: r.Output, Err: r.Err}, nil
}

// Calls returns every command received so far.
func (e *Executor) Calls() []shell.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]shell.Command(nil), e.calls...)
}

// Cmds returns the command strings received so far.
func (e *Executor) Cmds() []string {
	calls := e.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Cmd
	}
	return out
}
