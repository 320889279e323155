package netweaver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell/shelltest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ersConf = `NW_readProfileDir.profileDir = /sapmnt/HA1/profile
nw_instance_ers.ersInstanceNumber = 10
nwUsers.sidadmPassword = Suse1234
`

const stopDialog = "<html><p>Error when stopping instance.</p><p>Cannot stop instance <i>00</i> on host <i>sapha1as</i>.</p>" +
	"<p>Stop the instance manually and choose <i>OK</i> to continue.</html>"

const instanceList = `19.11.2019 10:00:00
GetSystemInstanceList
OK
hostname, instanceNr, httpPort, httpsPort, startPriority, features, dispstatus
sapha1as, 0, 50013, 50014, 0.3, MESSAGESERVER|ENQUE, GREEN
sapha1er, 10, 51013, 51014, 0.5, ENQREP, GREEN
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inifile.params")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return path
}

func baseInstall(conf string) InstallOptions {
	return InstallOptions{
		SoftwarePath: "/sapmedia/SWPM",
		VirtualHost:  "sapha1er",
		ProductID:    "NW_ERS:NW750.HDB.ABAPHA",
		ConfFile:     conf,
		RootUser:     "root",
		RootPassword: "linux",
	}
}

const ersInstallCmd = "/sapmedia/SWPM/sapinst SAPINST_USE_HOSTNAME=sapha1er SAPINST_EXECUTE_PRODUCT_ID=NW_ERS:NW750.HDB.ABAPHA " +
	"SAPINST_SKIP_SUCCESSFULLY_FINISHED_DIALOG=true SAPINST_START_GUISERVER=false SAPINST_INPUT_PARAMETERS_URL=/tmp/ers.params"

type stepClock struct {
	now    time.Time
	sleeps int
}

func (c *stepClock) retrier(timeout, interval int) shell.Retrier {
	return shell.Retrier{
		Timeout:  time.Duration(timeout) * time.Second,
		Interval: time.Duration(interval) * time.Second,
		Now:      func() time.Time { return c.now },
		Sleep: func(_ context.Context, d time.Duration) error {
			c.sleeps++
			c.now = c.now.Add(d)
			return nil
		},
	}
}

func useClock(t *testing.T) *stepClock {
	t.Helper()
	clock := &stepClock{now: time.Unix(0, 0)}
	orig := newRetrier
	newRetrier = clock.retrier
	t.Cleanup(func() { newRetrier = orig })
	return clock
}

func TestInstall(t *testing.T) {
	ex := shelltest.New()

	require.NoError(t, Install(context.Background(), ex, baseInstall("/tmp/ers.params")))
	assert.Equal(t, []shell.Command{{Cmd: ersInstallCmd, User: "root", Password: "linux"}}, ex.Calls())
}

func TestInstall_CleansCwd(t *testing.T) {
	ex := shelltest.New(
		shelltest.Reply{Output: "/tmp/inst/start_dir.cd /tmp/inst/sapinst.log /tmp/inst/sapinst_dev.log "},
	)
	o := baseInstall("/tmp/ers.params")
	o.Cwd = "/tmp/inst"
	o.RemoteHost = "sapha1er"

	require.NoError(t, Install(context.Background(), ex, o))
	calls := ex.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "printf '%q ' /tmp/inst/*", calls[0].Cmd)
	assert.Equal(t, "rm -rf /tmp/inst/sapinst.log /tmp/inst/sapinst_dev.log", calls[1].Cmd)
	assert.Equal(t, ersInstallCmd+" SAPINST_CWD=/tmp/inst", calls[2].Cmd)
	for _, c := range calls {
		assert.Equal(t, "root", c.User)
		assert.Equal(t, "sapha1er", c.RemoteHost)
	}
}

func TestInstall_EmptyCwdSkipsRemoval(t *testing.T) {
	ex := shelltest.New(shelltest.Reply{Output: "/tmp/inst/start_dir.cd "})
	o := baseInstall("/tmp/ers.params")
	o.Cwd = "/tmp/inst"

	require.NoError(t, Install(context.Background(), ex, o))
	assert.Len(t, ex.Cmds(), 2)
}

func TestInstall_Failure(t *testing.T) {
	err := Install(context.Background(), shelltest.New(shelltest.Reply{ExitCode: 1}), baseInstall("/tmp/ers.params"))
	assert.ErrorIs(t, err, common.ErrCommand)
	assert.EqualError(t, err, "SAP Netweaver installation failed. Please check swpm installation logs"+
		"(sapinst_dev.log and sapinst.log) located at /tmp/sapinst_instdir default folder for further information")

	o := baseInstall("/tmp/ers.params")
	o.Cwd = "/tmp/inst"
	err = Install(context.Background(), shelltest.New(
		shelltest.Reply{Output: "/tmp/inst/sapinst.log "}, shelltest.Reply{}, shelltest.Reply{ExitCode: 5}), o)
	assert.EqualError(t, err, "SAP Netweaver installation failed. Please check swpm installation logs"+
		"(sapinst_dev.log and sapinst.log) located at /tmp/inst for further information")
}

func TestInstallERS_Success(t *testing.T) {
	useClock(t)
	conf := writeFile(t, ersConf)
	ex := shelltest.New()

	require.NoError(t, InstallERS(context.Background(), ex, baseInstall(conf), ERSOptions{}))
	assert.Len(t, ex.Cmds(), 1)
}

func TestInstallERS_RestartsASCS(t *testing.T) {
	clock := useClock(t)
	conf := writeFile(t, ersConf)
	ex := shelltest.New(
		shelltest.Reply{ExitCode: 1},
		shelltest.Reply{ExitCode: UnspecifiedError, Output: stopDialog},
		shelltest.Reply{Output: instanceList},
	)

	err := InstallERS(context.Background(), ex, baseInstall(conf), ERSOptions{ASCSPassword: "ascspw", Timeout: 60})
	require.NoError(t, err)
	assert.Equal(t, 1, clock.sleeps)

	calls := ex.Calls()
	require.Len(t, calls, 5)
	assert.Equal(t, shell.Command{
		Cmd:      "sapcontrol -nr 10 -function GetSystemInstanceList",
		User:     "ha1adm",
		Password: "Suse1234",
	}, calls[2])
	assert.Equal(t, "sapcontrol -host sapha1as -user ha1adm ascspw -nr 0 -function StopWait 15 0", calls[3].Cmd)
	assert.Equal(t, "sapcontrol -host sapha1as -user ha1adm ascspw -nr 0 -function StartWait 15 0", calls[4].Cmd)
}

func TestInstallERS_ASCSPasswordDefaultsToSidadm(t *testing.T) {
	useClock(t)
	conf := writeFile(t, ersConf)
	ex := shelltest.New(
		shelltest.Reply{ExitCode: UnspecifiedError, Output: stopDialog},
		shelltest.Reply{Output: instanceList},
	)

	require.NoError(t, InstallERS(context.Background(), ex, baseInstall(conf), ERSOptions{}))
	assert.Contains(t, ex.Cmds()[2], "-user ha1adm Suse1234 ")
}

func TestInstallERS_Timeout(t *testing.T) {
	clock := useClock(t)
	conf := writeFile(t, ersConf)
	replies := make([]shelltest.Reply, 10)
	for n := range replies {
		replies[n] = shelltest.Reply{ExitCode: 1}
	}
	ex := shelltest.New(replies...)

	err := InstallERS(context.Background(), ex, baseInstall(conf), ERSOptions{Timeout: 10, Interval: 5})
	assert.ErrorIs(t, err, common.ErrTimeout)
	assert.EqualError(t, err, "SAP Netweaver ERS installation failed after 10 seconds")
	assert.Len(t, ex.Cmds(), 3)
	assert.Equal(t, 2, clock.sleeps)
}

func TestInstallERS_MissingPassword(t *testing.T) {
	conf := writeFile(t, "nw_instance_ers.ersInstanceNumber = 10\n")

	err := InstallERS(context.Background(), shelltest.New(), baseInstall(conf), ERSOptions{})
	assert.ErrorIs(t, err, common.ErrParse)
}

func TestInstallERS_ASCSNotListed(t *testing.T) {
	useClock(t)
	conf := writeFile(t, ersConf)
	ex := shelltest.New(
		shelltest.Reply{ExitCode: UnspecifiedError, Output: stopDialog},
		shelltest.Reply{Output: "OK\n"},
	)

	err := InstallERS(context.Background(), ex, baseInstall(conf), ERSOptions{})
	assert.ErrorIs(t, err, common.ErrParse)
}

func TestUninstall(t *testing.T) {
	inst, ex := newTestInstance(t, []Option{WithRemoteHost("sapha1as")})
	o := baseInstall("/tmp/uninstall.params")

	require.NoError(t, inst.Uninstall(context.Background(), o))
	calls := ex.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].Cmd, "SAPINST_EXECUTE_PRODUCT_ID=NW_Uninstall:GENERIC.IND.PD ")
	assert.Equal(t, "sapha1as", calls[0].RemoteHost)
	assert.Equal(t, shell.Command{Cmd: "userdel ha1adm", User: "root", Password: "linux", RemoteHost: "sapha1as"}, calls[1])
}

func TestUpdateConfFile(t *testing.T) {
	path := writeFile(t, "NW_GetMasterPassword.masterPwd = \nnwUsers.sidadmPassword   = old\n")

	got, err := UpdateConfFile(path, map[string]string{
		"nwUsers.sidadmPassword":         "Suse1234",
		"NW_GetMasterPassword.masterPwd": "Master1234",
		"hostAgent.sapAdmPassword":       "Agent1234",
	})
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "NW_GetMasterPassword.masterPwd = Master1234\nnwUsers.sidadmPassword = Suse1234\n"+
		"\nhostAgent.sapAdmPassword = Agent1234", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestAttributeFromFile(t *testing.T) {
	path := writeFile(t, ersConf)

	got, err := AttributeFromFile(path, ersNumberPattern)
	require.NoError(t, err)
	assert.Equal(t, []string{"nw_instance_ers.ersInstanceNumber = 10", "10"}, got)

	got, err = AttributeFromFile(path, stopInstanceDialog)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = AttributeFromFile(filepath.Join(t.TempDir(), "missing"), ersNumberPattern)
	assert.Error(t, err)
}
