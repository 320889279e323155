package hana

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
	"gitlab.prplanit.com/precisionplanit/sapsteward/shell"
)

// Credentials selects how hdbsql logs in: a user store key, or a user and
// password pair. KeyName wins when both are set.
type Credentials struct {
	KeyName      string
	UserName     string
	UserPassword string
}

// HdbsqlConnect builds the hdbsql prefix for the given credentials.
func (i *Instance) HdbsqlConnect(creds Credentials) (string, error) {
	switch {
	case creds.KeyName != "":
		return fmt.Sprintf("hdbsql -i %s -U %s", i.id.Instance, shell.QuoteIfNeeded(creds.KeyName, true)), nil
	case creds.UserName != "" && creds.UserPassword != "":
		common.RegisterSecret(creds.UserPassword)
		return fmt.Sprintf("hdbsql -i %s -u %s -p %s", i.id.Instance,
			shell.QuoteIfNeeded(creds.UserName, true), shell.QuoteIfNeeded(creds.UserPassword, true)), nil
	}
	return "", fmt.Errorf("%w: key_name or user_name/user_password parameters must be used", common.ErrValidation)
}

// RunHdbsql runs one SQL statement through hdbsql, against database when set.
func (i *Instance) RunHdbsql(ctx context.Context, creds Credentials, database, query string) (*shell.ProcessResult, error) {
	hdbsql, err := i.HdbsqlConnect(creds)
	if err != nil {
		return nil, err
	}
	db := ""
	if database != "" {
		db = "-d " + shell.QuoteIfNeeded(database, true) + " "
	}
	return i.Run(ctx, hdbsql+" "+db+shell.Quote(query, true))
}

// Dummy runs a trivial query to prove the database answers.
func (i *Instance) Dummy(ctx context.Context, creds Credentials, database string) (*shell.ProcessResult, error) {
	return i.RunHdbsql(ctx, creds, database, "SELECT * FROM DUMMY")
}

// --- User store ---

// CheckUserKey reports whether key exists in the user store.
func (i *Instance) CheckUserKey(ctx context.Context, key string) (bool, error) {
	_, err := i.Run(ctx, "hdbuserstore list "+key)
	if err == nil {
		return true, nil
	}
	var herr *Error
	if errors.As(err, &herr) {
		return false, nil
	}
	return false, err
}

// CreateUserKey creates or updates a user store key. environment is
// host:port; database selects a tenant in multi-container systems.
func (i *Instance) CreateUserKey(ctx context.Context, key, environment, user, password, database string) error {
	db := ""
	if database != "" {
		db = "@" + database
	}
	common.RegisterSecret(password)
	_, err := i.Run(ctx, fmt.Sprintf("hdbuserstore set %s %s%s %s %s", key, environment, db,
		shell.QuoteIfNeeded(user, true), shell.QuoteIfNeeded(password, true)))
	return err
}

// CreateBackup takes a full data backup of database into file backupName.
func (i *Instance) CreateBackup(ctx context.Context, database, backupName string, creds Credentials) error {
	hdbsql, err := i.HdbsqlConnect(creds)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf("BACKUP DATA FOR FULL SYSTEM USING FILE ('%s')", backupName)
	_, err = i.Run(ctx, fmt.Sprintf("%s -d %s %s", hdbsql, shell.QuoteIfNeeded(database, true), shell.Quote(sql, true)))
	return err
}

// --- Ini parameters ---

// IniParameter addresses one parameter of an ini file. Value is ignored when
// unsetting.
type IniParameter struct {
	Section string
	Name    string
	Value   string
}

// IniTarget selects the ini file and configuration layer to alter.
type IniTarget struct {
	Database  string
	File      string
	Layer     string
	LayerName string
	Reconfig  bool
}

func (t IniTarget) alter(verb, items string) string {
	layer := fmt.Sprintf("'%s', '%s'", t.File, t.Layer)
	if t.LayerName != "" {
		layer += fmt.Sprintf(", '%s'", t.LayerName)
	}
	reconfig := ""
	if t.Reconfig {
		reconfig = " WITH RECONFIGURE"
	}
	sql := fmt.Sprintf("ALTER SYSTEM ALTER CONFIGURATION(%s) %s%s%s;", layer, verb, items, reconfig)
	return fmt.Sprintf("-d %s %s", shell.QuoteIfNeeded(t.Database, true), shell.Quote(sql, true))
}

// SetIniParameter sets parameters in an ini file layer.
func (i *Instance) SetIniParameter(ctx context.Context, params []IniParameter, target IniTarget, creds Credentials) error {
	items := make([]string, len(params))
	for n, p := range params {
		items[n] = fmt.Sprintf("('%s','%s')='%s'", p.Section, p.Name, p.Value)
	}
	return i.alterIni(ctx, "SET", items, target, creds)
}

// UnsetIniParameter removes parameters from an ini file layer.
func (i *Instance) UnsetIniParameter(ctx context.Context, params []IniParameter, target IniTarget, creds Credentials) error {
	items := make([]string, len(params))
	for n, p := range params {
		items[n] = fmt.Sprintf("('%s','%s')", p.Section, p.Name)
	}
	return i.alterIni(ctx, "UNSET", items, target, creds)
}

func (i *Instance) alterIni(ctx context.Context, verb string, items []string, target IniTarget, creds Credentials) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one ini parameter is required", common.ErrValidation)
	}
	hdbsql, err := i.HdbsqlConnect(creds)
	if err != nil {
		return err
	}
	_, err = i.Run(ctx, hdbsql+" "+target.alter(verb, strings.Join(items, ", ")))
	return err
}
