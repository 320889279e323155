package shell

import (
	"context"
	"fmt"
	"regexp"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
)

// RemoveUser deletes an OS user with userdel, running as rootUser. With
// force, a process still owned by the user is killed and the removal retried.
func RemoveUser(ctx context.Context, ex Executor, user string, force bool, rootUser, rootPassword, remoteHost string) error {
	busy := regexp.MustCompile(fmt.Sprintf(`userdel: user %s is currently used by process (.*)`, regexp.QuoteMeta(user)))
	run := func(cmd string) (*ProcessResult, error) {
		return ex.Execute(ctx, Command{Cmd: cmd, User: rootUser, Password: rootPassword, RemoteHost: remoteHost})
	}

	for {
		res, err := run("userdel " + user)
		if err != nil {
			return err
		}
		if res.ExitCode == 0 {
			return nil
		}
		if !force {
			break
		}
		m := FindPattern(busy, res.Err)
		if m == nil {
			break
		}
		if _, err := run("kill -9 " + m[1]); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: error removing user %s", common.ErrCommand, user)
}
