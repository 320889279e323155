package hdb

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"
)

// HdbsqlDriver runs statements through the hdbsql command line client.
const HdbsqlDriver = "hdbsql"

// Separator is the hdbsql field separator used for parsing.
const Separator = "|"

// lookPath is swapped in tests.
var lookPath = exec.LookPath

func init() {
	Register(HdbsqlDriver, Driver{
		New:       func() Connector { return NewHdbsql(shell.NewRunner(nil), nil) },
		Available: func() bool { _, err := lookPath("hdbsql"); return err == nil },
	})
}

// Hdbsql is a Connector that runs one hdbsql process per statement. It
// keeps no server session; "connected" means the last probe succeeded.
type Hdbsql struct {
	exec      shell.Executor
	last      target
	connected bool
	logger    *slog.Logger
}

// NewHdbsql creates an unconnected hdbsql connector running through ex.
func NewHdbsql(ex shell.Executor, logger *slog.Logger) *Hdbsql {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hdbsql{exec: ex, logger: logger.With("driver", HdbsqlDriver)}
}

func (h *Hdbsql) Name() string { return HdbsqlDriver }

func (h *Hdbsql) wrapped() bool {
	return h.last.props.OSUser != "" || h.last.props.RemoteHost != ""
}

// Command builds the hdbsql invocation for sql against the connected target.
func (h *Hdbsql) Command(sql string) string {
	p := h.last.props
	w := h.wrapped()
	var b strings.Builder
	fmt.Fprintf(&b, "hdbsql -n %s", h.last.address())
	if p.User != "" {
		fmt.Fprintf(&b, " -u %s -p %s", shell.QuoteIfNeeded(p.User, w), shell.QuoteIfNeeded(p.Password, w))
	}
	if db := p.Params["databaseName"]; db != "" {
		fmt.Fprintf(&b, " -d %s", shell.QuoteIfNeeded(db, w))
	}
	fmt.Fprintf(&b, " -j -x -C -F %s %s", shell.Quote(Separator, w), shell.Quote(sql, w))
	return b.String()
}

func (h *Hdbsql) run(ctx context.Context, sql string) (*shell.ProcessResult, error) {
	p := h.last.props
	return h.exec.Execute(ctx, shell.Command{
		Cmd:        h.Command(sql),
		User:       p.OSUser,
		Password:   p.OSPassword,
		RemoteHost: p.RemoteHost,
	})
}

func (h *Hdbsql) Connect(ctx context.Context, host string, port int, props Properties) error {
	common.RegisterSecret(props.Password)
	common.RegisterSecret(props.OSPassword)
	h.last = target{host: host, port: port, props: props}
	h.connected = false
	h.logger.Info("connecting to SAP HANA database", "address", h.last.address())

	res, err := h.run(ctx, "SELECT * FROM DUMMY")
	if err != nil {
		return connectionError("%v", err)
	}
	if res.ExitCode != 0 {
		return connectionError("hdbsql exited with code %d: %s", res.ExitCode, firstLine(res.Output, res.Err))
	}
	h.connected = true
	h.logger.Info("connected successfully")
	return nil
}

func (h *Hdbsql) Query(ctx context.Context, sql string) (*QueryResult, error) {
	if !h.connected {
		return nil, connectionError("not connected")
	}
	h.logger.Info("executing sql query", "query", sql)
	res, err := h.run(ctx, sql)
	if err != nil {
		return nil, connectionError("%v", err)
	}
	if res.ExitCode != 0 {
		return nil, queryError("executing query failed: %s", firstLine(res.Output, res.Err))
	}
	return ParseHdbsqlOutput(res.Output), nil
}

// ParseHdbsqlOutput reads separator-delimited output whose first line holds
// the column names. Values are kept as strings.
func ParseHdbsqlOutput(output string) *QueryResult {
	result := &QueryResult{}
	for _, line := range strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, Separator)
		if result.Columns == nil {
			result.Columns = make([]Column, len(fields))
			for i, f := range fields {
				result.Columns[i] = Column{Name: strings.TrimSpace(f)}
			}
			continue
		}
		record := make([]any, len(fields))
		for i, f := range fields {
			record[i] = strings.TrimSpace(f)
		}
		result.Records = append(result.Records, record)
	}
	return result
}

func firstLine(outputs ...string) string {
	for _, o := range outputs {
		if line, _, _ := strings.Cut(strings.TrimSpace(o), "\n"); line != "" {
			return line
		}
	}
	return "no output"
}

func (h *Hdbsql) Disconnect() error {
	h.connected = false
	return nil
}

func (h *Hdbsql) IsConnected(context.Context) bool { return h.connected }

func (h *Hdbsql) Reconnect(ctx context.Context) error {
	if !h.last.set() {
		return connectionError("connect method must be used first to reconnect")
	}
	if h.connected {
		h.logger.Info("connection already created")
		return nil
	}
	h.logger.Info("reconnecting")
	return h.Connect(ctx, h.last.host, h.last.port, h.last.props)
}
