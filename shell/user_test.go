package shell_test

import (
	"context"
	"testing"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell/shelltest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveUser(t *testing.T) {
	ex := shelltest.New(shelltest.Reply{ExitCode: 0})

	err := shell.RemoveUser(context.Background(), ex, "prdadm", false, "root", "rootpw", "")
	require.NoError(t, err)
	assert.Equal(t, []shell.Command{{Cmd: "userdel prdadm", User: "root", Password: "rootpw"}}, ex.Calls())
}

func TestRemoveUser_ForceKillsBlockingProcess(t *testing.T) {
	ex := shelltest.New(
		shelltest.Reply{ExitCode: 8, Err: "userdel: user prdadm is currently used by process 1234\n"},
		shelltest.Reply{ExitCode: 0},
		shelltest.Reply{ExitCode: 8, Err: "userdel: user prdadm is currently used by process 5678\n"},
		shelltest.Reply{ExitCode: 0},
		shelltest.Reply{ExitCode: 0},
	)

	err := shell.RemoveUser(context.Background(), ex, "prdadm", true, "root", "", "hana02")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"userdel prdadm", "kill -9 1234",
		"userdel prdadm", "kill -9 5678",
		"userdel prdadm",
	}, ex.Cmds())
	for _, c := range ex.Calls() {
		assert.Equal(t, "hana02", c.RemoteHost)
	}
}

func TestRemoveUser_Failures(t *testing.T) {
	t.Run("without force", func(t *testing.T) {
		ex := shelltest.New(shelltest.Reply{ExitCode: 8, Err: "userdel: user prdadm is currently used by process 1"})
		err := shell.RemoveUser(context.Background(), ex, "prdadm", false, "", "", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrCommand)
		assert.Contains(t, err.Error(), "error removing user prdadm")
		assert.Len(t, ex.Calls(), 1)
	})

	t.Run("force without process hint", func(t *testing.T) {
		ex := shelltest.New(shelltest.Reply{ExitCode: 6, Err: "userdel: user prdadm does not exist"})
		err := shell.RemoveUser(context.Background(), ex, "prdadm", true, "", "", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error removing user prdadm")
	})
}
