// Package hdb connects to the SAP HANA SQL port through interchangeable
// drivers chosen at runtime.
package hdb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
)

var (
	// ErrDriverNotAvailable is returned when none of the requested drivers
	// can be used on this host.
	ErrDriverNotAvailable = errors.New("no hana driver available")
	// ErrConnection wraps failures to reach or keep the database session.
	ErrConnection = errors.New("connection failed")
	// ErrQuery wraps failures to run a statement or read its result.
	ErrQuery = errors.New("query failed")
)

// Properties carry credentials and driver-specific connection options.
// Params become DSN query parameters for go-hdb; hdbsql honors only
// "databaseName". OSUser, OSPassword and RemoteHost choose how command
// line drivers are launched.
type Properties struct {
	User     string
	Password string
	Params   map[string]string

	OSUser     string
	OSPassword string
	RemoteHost string
}

// Column describes one result column.
type Column struct {
	Name string
	Type string
}

// QueryResult holds a fully read result set.
type QueryResult struct {
	Columns []Column
	Records [][]any
}

// ColumnNames returns the column names in order.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// Connector is one live database session. A Connector is not safe for
// concurrent use.
type Connector interface {
	// Name returns the driver identifier ("go-hdb" or "hdbsql").
	Name() string

	// Connect opens the session and verifies it.
	Connect(ctx context.Context, host string, port int, props Properties) error

	// Query runs a statement and reads every row.
	Query(ctx context.Context, sql string) (*QueryResult, error)

	// Disconnect closes the session.
	Disconnect() error

	// IsConnected reports whether the session is usable.
	IsConnected(ctx context.Context) bool

	// Reconnect reopens a lost session with the last Connect arguments.
	Reconnect(ctx context.Context) error
}

// DefaultPort returns the SQL port of the system database of an instance,
// 3<instance>15.
func DefaultPort(instance string) (int, error) {
	inst, err := common.PadInstance(instance)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(fmt.Sprintf("3%s15", inst))
}

// target remembers Connect arguments for Reconnect.
type target struct {
	host  string
	port  int
	props Properties
}

func (t target) address() string {
	return fmt.Sprintf("%s:%d", t.host, t.port)
}

func (t target) set() bool { return t.host != "" }

func connectionError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConnection, fmt.Sprintf(format, args...))
}

func queryError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrQuery, fmt.Sprintf(format, args...))
}
