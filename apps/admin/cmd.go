package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/audit"
	"github.com/trezcool/daftari/core/person"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf     *core.Config
	db       *sql.DB // postgres backend only, for migrate
	people   *person.Service
	personDB person.Repository
	audit    *audit.Service
	out      io.Writer
}

// caller is the identity the CLI acts as; its audit entries carry origin "cli".
func (cli *commandLine) caller() access.Caller {
	return access.System("cli")
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                      - run a goose command (up, down, status, ...) on the postgres schema")
	fmt.Fprintln(cli.out, "  addadmin -name NAME -email EMAIL [-unit U]  - create an administrator")
	fmt.Fprintln(cli.out, "  token -email EMAIL                          - print an API token for a person")
	fmt.Fprintln(cli.out, "  pruneaudit -before DATE|-older DURATION     - delete old audit entries")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addAdminCmd := flag.NewFlagSet("addadmin", flag.ContinueOnError)
	addAdminCmd.SetOutput(cli.out)
	addAdminName := addAdminCmd.String("name", "", "The administrator's full name.")
	addAdminEmail := addAdminCmd.String("email", "", "The administrator's email.")
	addAdminUnit := addAdminCmd.String("unit", "", "The organisational unit, optional.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	tokenEmail := tokenCmd.String("email", "", "The email of the person to issue a token for.")

	pruneCmd := flag.NewFlagSet("pruneaudit", flag.ContinueOnError)
	pruneCmd.SetOutput(cli.out)
	pruneBefore := pruneCmd.String("before", "", "Delete entries older than this date (YYYY-MM-DD).")
	pruneOlder := pruneCmd.Duration("older", 0, "Delete entries older than this duration (e.g. 2160h).")

	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addadmin":
		if err := addAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addAdminName == "" || *addAdminEmail == "" {
			addAdminCmd.Usage()
			return errHelp
		}
		return cli.addAdmin(ctx, person.NewPerson{Name: *addAdminName, Email: *addAdminEmail, Unit: *addAdminUnit})

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenEmail == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(ctx, *tokenEmail)

	case "pruneaudit":
		if err := pruneCmd.Parse(args[2:]); err != nil {
			return err
		}
		var before time.Time
		switch {
		case *pruneBefore != "" && *pruneOlder == 0:
			t, err := core.ParseDate("before", *pruneBefore)
			if err != nil {
				return err
			}
			before = t.UTC()
		case *pruneBefore == "" && *pruneOlder > 0:
			before = time.Now().UTC().Add(-*pruneOlder)
		default:
			pruneCmd.Usage()
			return errHelp
		}
		return cli.pruneAudit(ctx, before)

	default:
		cli.printUsage()
		return errHelp
	}
}
