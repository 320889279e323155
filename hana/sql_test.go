package hana

import (
	"context"
	"errors"
	"testing"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell/shelltest"

	"github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHdbsqlConnect(t *testing.T) {
	inst, _ := newTestInstance(t, nil)
	tests := []struct {
		name  string
		creds Credentials
		want  string
	}{
		{name: "key", creds: Credentials{KeyName: "mykey"}, want: "hdbsql -i 00 -U mykey"},
		{name: "key wins", creds: Credentials{KeyName: "mykey", UserName: "user", UserPassword: "pass"}, want: "hdbsql -i 00 -U mykey"},
		{name: "user and password", creds: Credentials{UserName: "user", UserPassword: "pass"}, want: "hdbsql -i 00 -u user -p pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := inst.HdbsqlConnect(tt.creds)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, creds := range []Credentials{{}, {UserName: "user"}, {UserPassword: "pass"}} {
		_, err := inst.HdbsqlConnect(creds)
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.Contains(t, err.Error(), "key_name or user_name/user_password parameters must be used")
	}
}

func TestRunHdbsql(t *testing.T) {
	inst, ex := newTestInstance(t, nil)
	ctx := context.Background()

	_, err := inst.RunHdbsql(ctx, Credentials{KeyName: "key"}, "SYSTEMDB", "SELECT 1 FROM DUMMY")
	require.NoError(t, err)
	_, err = inst.Dummy(ctx, Credentials{UserName: "SYSTEM", UserPassword: "pw"}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		`hdbsql -i 00 -U key -d SYSTEMDB \"SELECT 1 FROM DUMMY\"`,
		`hdbsql -i 00 -u SYSTEM -p pw \"SELECT * FROM DUMMY\"`,
	}, ex.Cmds())
}

// innerArgs splits a command the way the login shell behind su sees it.
func innerArgs(t *testing.T, c shell.Command) []string {
	t.Helper()
	line, err := shell.Wrap(c)
	require.NoError(t, err)
	outer, err := shellquote.Split(line)
	require.NoError(t, err)
	require.Len(t, outer, 4)
	inner, err := shellquote.Split(outer[2])
	require.NoError(t, err)
	return inner
}

func TestRunHdbsql_QuotedIdentifiersAndPasswords(t *testing.T) {
	inst, ex := newTestInstance(t, nil)
	creds := Credentials{UserName: "SYSTEM", UserPassword: "#Start 123"}

	_, err := inst.RunHdbsql(context.Background(), creds, "SYSTEMDB", `SELECT * FROM "SYS"."M_DATABASES"`)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"hdbsql", "-i", "00", "-u", "SYSTEM", "-p", "#Start 123", "-d", "SYSTEMDB",
		`SELECT * FROM "SYS"."M_DATABASES"`,
	}, innerArgs(t, ex.Calls()[0]))
}

func TestCreateUserKey_AwkwardPassword(t *testing.T) {
	inst, ex := newTestInstance(t, nil)

	require.NoError(t, inst.CreateUserKey(context.Background(), "backupkey", "hana01:30013", "SYSTEM", "#pa ss", ""))
	assert.Equal(t, []string{"hdbuserstore", "set", "backupkey", "hana01:30013", "SYSTEM", "#pa ss"},
		innerArgs(t, ex.Calls()[0]))
}

func TestCheckUserKey(t *testing.T) {
	ctx := context.Background()

	inst, ex := newTestInstance(t, nil, shelltest.Reply{ExitCode: 0})
	ok, err := inst.CheckUserKey(ctx, "backupkey")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"hdbuserstore list backupkey"}, ex.Cmds())

	inst, _ = newTestInstance(t, nil, shelltest.Reply{ExitCode: 1})
	ok, err = inst.CheckUserKey(ctx, "backupkey")
	require.NoError(t, err)
	assert.False(t, ok)

	launch := errors.New("no such user")
	inst, _ = newTestInstance(t, nil, shelltest.Reply{Error: launch})
	_, err = inst.CheckUserKey(ctx, "backupkey")
	assert.ErrorIs(t, err, launch)
}

func TestCreateUserKey(t *testing.T) {
	inst, ex := newTestInstance(t, nil)
	ctx := context.Background()

	require.NoError(t, inst.CreateUserKey(ctx, "backupkey", "hana01:30013", "SYSTEM", "pw", "SYSTEMDB"))
	require.NoError(t, inst.CreateUserKey(ctx, "backupkey", "hana01:30013", "SYSTEM", "pw", ""))
	assert.Equal(t, []string{
		"hdbuserstore set backupkey hana01:30013@SYSTEMDB SYSTEM pw",
		"hdbuserstore set backupkey hana01:30013 SYSTEM pw",
	}, ex.Cmds())
}

func TestCreateBackup(t *testing.T) {
	inst, ex := newTestInstance(t, nil)

	require.NoError(t, inst.CreateBackup(context.Background(), "SYSTEMDB", "nightly", Credentials{KeyName: "backupkey"}))
	assert.Equal(t, []string{
		`hdbsql -i 00 -U backupkey -d SYSTEMDB \"BACKUP DATA FOR FULL SYSTEM USING FILE ('nightly')\"`,
	}, ex.Cmds())

	err := inst.CreateBackup(context.Background(), "SYSTEMDB", "nightly", Credentials{})
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Len(t, ex.Cmds(), 1, "no command runs without credentials")
}

func TestSetIniParameter(t *testing.T) {
	limit := []IniParameter{{Section: "memorymanager", Name: "global_allocation_limit", Value: "25000"}}
	creds := Credentials{KeyName: "key"}
	tests := []struct {
		name   string
		params []IniParameter
		target IniTarget
		want   string
	}{
		{
			name:   "system layer",
			params: limit,
			target: IniTarget{Database: "db", File: "global.ini", Layer: "SYSTEM"},
			want:   `hdbsql -i 00 -U key -d db \"ALTER SYSTEM ALTER CONFIGURATION('global.ini', 'SYSTEM') SET('memorymanager','global_allocation_limit')='25000';\"`,
		},
		{
			name:   "host layer",
			params: limit,
			target: IniTarget{Database: "db", File: "global.ini", Layer: "HOST", LayerName: "host01"},
			want:   `hdbsql -i 00 -U key -d db \"ALTER SYSTEM ALTER CONFIGURATION('global.ini', 'HOST', 'host01') SET('memorymanager','global_allocation_limit')='25000';\"`,
		},
		{
			name:   "reconfigure",
			params: limit,
			target: IniTarget{Database: "db", File: "global.ini", Layer: "SYSTEM", Reconfig: true},
			want:   `hdbsql -i 00 -U key -d db \"ALTER SYSTEM ALTER CONFIGURATION('global.ini', 'SYSTEM') SET('memorymanager','global_allocation_limit')='25000' WITH RECONFIGURE;\"`,
		},
		{
			name:   "several parameters",
			params: append(limit, IniParameter{Section: "persistence", Name: "log_mode", Value: "normal"}),
			target: IniTarget{Database: "db", File: "global.ini", Layer: "SYSTEM"},
			want:   `hdbsql -i 00 -U key -d db \"ALTER SYSTEM ALTER CONFIGURATION('global.ini', 'SYSTEM') SET('memorymanager','global_allocation_limit')='25000', ('persistence','log_mode')='normal';\"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, ex := newTestInstance(t, nil)
			require.NoError(t, inst.SetIniParameter(context.Background(), tt.params, tt.target, creds))
			assert.Equal(t, []string{tt.want}, ex.Cmds())
		})
	}
}

func TestUnsetIniParameter(t *testing.T) {
	inst, ex := newTestInstance(t, nil)
	params := []IniParameter{{Section: "memorymanager", Name: "global_allocation_limit"}}

	require.NoError(t, inst.UnsetIniParameter(context.Background(), params,
		IniTarget{Database: "db", File: "global.ini", Layer: "HOST", LayerName: "host01", Reconfig: true},
		Credentials{UserName: "SYSTEM", UserPassword: "pw"}))
	assert.Equal(t, []string{
		`hdbsql -i 00 -u SYSTEM -p pw -d db \"ALTER SYSTEM ALTER CONFIGURATION('global.ini', 'HOST', 'host01') UNSET('memorymanager','global_allocation_limit') WITH RECONFIGURE;\"`,
	}, ex.Cmds())

	err := inst.UnsetIniParameter(context.Background(), nil, IniTarget{}, Credentials{KeyName: "key"})
	assert.ErrorIs(t, err, common.ErrValidation)
}
