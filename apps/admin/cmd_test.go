package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/daftari/apps/api/echo"
	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/audit"
	"github.com/trezcool/daftari/core/person"
	"github.com/trezcool/daftari/testutil"
)

func setup(t *testing.T) (*commandLine, *testutil.Env, *bytes.Buffer) {
	env := testutil.NewEnv(t)
	out := new(bytes.Buffer)
	cli := &commandLine{
		conf: &core.Config{
			AppName:   "Daftari",
			SecretKey: "secret",
			Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
		},
		db:       new(sql.DB),
		people:   env.People,
		personDB: env.Repos.Person,
		audit:    env.Audit,
		out:      out,
	}
	return cli, env, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	check      func(t *testing.T, err error)
}

func (tt cliTest) run(t *testing.T, cli *commandLine) {
	args := append([]string{"admin"}, tt.args...)
	t.Run(tt.name, func(t *testing.T) {
		err := cli.run(args)
		switch {
		case tt.wantErr != nil:
			assert.Equal(t, tt.wantErr, err)
		case tt.wantErrStr != "":
			require.Error(t, err)
			assert.Equal(t, tt.wantErrStr, err.Error())
		case tt.check != nil:
			tt.check(t, err)
		default:
			assert.NoError(t, err)
		}
	})
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		tt.run(t, cli)
	}
	assert.Contains(t, out.String(), "pruneaudit")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	defer func(orig func(string, *sql.DB, fs.FS, string, ...string) error) { gooseRunFunc = orig }(gooseRunFunc)
	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		if _, err := fs.Stat(fsys, dir); err != nil {
			return err
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "semester", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		tt.run(t, cli)
	}

	t.Run("bolt backend", func(t *testing.T) {
		cli.db = nil
		assert.Equal(t, errNoDatabase, cli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_addAdmin(t *testing.T) {
	cli, env, out := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no args", args: []string{"addadmin"}, wantErr: errHelp},
		{name: "no email", args: []string{"addadmin", "-name", "Root"}, wantErr: errHelp},
		{name: "invalid email", args: []string{"addadmin", "-name", "Root", "-email", "lol"}, check: func(t *testing.T, err error) {
			assert.True(t, core.IsValidation(err), "got %v", err)
		}},
		{name: "created", args: []string{"addadmin", "-name", "Root", "-email", " Root@Daftari.test", "-unit", "Registry"}},
		{name: "email taken", args: []string{"addadmin", "-name", "Root again", "-email", "root@daftari.test"}, wantErr: person.ErrEmailTaken},
	}
	for _, tt := range tests {
		tt.run(t, cli)
	}

	p, err := env.Repos.Person.GetPersonByEmail(ctx, "root@daftari.test")
	require.NoError(t, err)
	assert.Equal(t, access.RoleAdmin, p.Role)
	assert.Equal(t, "Registry", p.Unit)
	assert.Contains(t, out.String(), "administrator root@daftari.test created")

	entries, err := env.Audit.List(ctx, env.Admin, audit.Filter{Action: audit.ActionCreateAdmin}, core.Page{})
	require.NoError(t, err)
	require.Len(t, entries.Entries, 1)
	assert.Equal(t, "cli", entries.Entries[0].Origin)
}

func Test_commandLine_token(t *testing.T) {
	cli, env, out := setup(t)
	instructor, _ := env.CreateInstructor(t, "Grace")

	tests := []cliTest{
		{name: "no email", args: []string{"token"}, wantErr: errHelp},
		{name: "unknown person", args: []string{"token", "-email", "nobody@daftari.test"}, wantErr: person.ErrNotFound},
		{name: "issued", args: []string{"token", "-email", "GRACE@daftari.test"}},
	}
	for _, tt := range tests {
		tt.run(t, cli)
	}

	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(string(bytes.TrimSpace(out.Bytes())), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cli.conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.Equal(t, instructor.PersonID, claims.Subject)
	assert.Equal(t, access.RoleInstructor, claims.Role)
}

func Test_commandLine_pruneAudit(t *testing.T) {
	cli, env, out := setup(t)
	env.CreateEnrollee(t, "Ada")
	env.CreateEnrollee(t, "Alan")
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format(core.DateLayout)

	tests := []cliTest{
		{name: "no args", args: []string{"pruneaudit"}, wantErr: errHelp},
		{name: "both bounds", args: []string{"pruneaudit", "-before", tomorrow, "-older", "24h"}, wantErr: errHelp},
		{name: "invalid date", args: []string{"pruneaudit", "-before", "yesterday"}, check: func(t *testing.T, err error) {
			assert.True(t, core.IsValidation(err), "got %v", err)
		}},
		{name: "nothing old enough", args: []string{"pruneaudit", "-older", "24h"}},
		{name: "everything", args: []string{"pruneaudit", "-before", tomorrow}},
	}
	for _, tt := range tests {
		tt.run(t, cli)
	}

	assert.Contains(t, out.String(), "deleted 0 audit entries")
	assert.Contains(t, out.String(), "deleted 3 audit entries", "two creations and the first prune")
	assert.Equal(t, []audit.Action{audit.ActionPruneAudit}, env.AuditActions(t))
}
