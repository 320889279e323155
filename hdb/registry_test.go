package hdb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubLookPath(t *testing.T, found bool) {
	t.Helper()
	orig := lookPath
	lookPath = func(file string) (string, error) {
		if found {
			return "/usr/sap/hdbclient/" + file, nil
		}
		return "", errors.New("not found")
	}
	t.Cleanup(func() { lookPath = orig })
}

func TestValidDrivers(t *testing.T) {
	assert.Equal(t, []string{GoHDBDriver, HdbsqlDriver}, ValidDrivers())
}

func TestNew(t *testing.T) {
	c, err := New(GoHDBDriver)
	require.NoError(t, err)
	assert.IsType(t, &GoHDB{}, c)

	c, err = New(HdbsqlDriver)
	require.NoError(t, err)
	assert.Equal(t, HdbsqlDriver, c.Name())

	_, err = New("pyhdb")
	assert.EqualError(t, err, `unknown driver "pyhdb" (valid: [go-hdb hdbsql])`)
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name       string
		hdbsql     bool
		preference []string
		want       string
		wantErr    bool
	}{
		{"default prefers go-hdb", false, nil, GoHDBDriver, false},
		{"hdbsql first when installed", true, []string{HdbsqlDriver, GoHDBDriver}, HdbsqlDriver, false},
		{"falls back", false, []string{HdbsqlDriver, GoHDBDriver}, GoHDBDriver, false},
		{"unknown names are skipped", true, []string{"pyhdb", HdbsqlDriver}, HdbsqlDriver, false},
		{"nothing available", false, []string{HdbsqlDriver}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubLookPath(t, tt.hdbsql)
			got, err := Probe(tt.preference...)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDriverNotAvailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen(t *testing.T) {
	for _, name := range []string{"", "auto"} {
		c, err := Open(name)
		require.NoError(t, err)
		assert.Equal(t, GoHDBDriver, c.Name())
	}

	stubLookPath(t, true)
	c, err := Open(HdbsqlDriver)
	require.NoError(t, err)
	assert.Equal(t, HdbsqlDriver, c.Name())
}

func TestDefaultPort(t *testing.T) {
	port, err := DefaultPort("0")
	require.NoError(t, err)
	assert.Equal(t, 30015, port)

	port, err = DefaultPort("10")
	require.NoError(t, err)
	assert.Equal(t, 31015, port)

	_, err = DefaultPort("x")
	assert.Error(t, err)
}
