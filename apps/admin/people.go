package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/daftari/apps/api/echo"
	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/person"
)

func (cli *commandLine) addAdmin(ctx context.Context, data person.NewPerson) error {
	p, err := cli.people.CreateAdmin(ctx, cli.caller(), data)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "administrator %s created (id %s)\n", p.Email, p.ID)
	return nil
}

func (cli *commandLine) token(ctx context.Context, email string) error {
	p, err := cli.personDB.GetPersonByEmail(ctx, core.CleanString(email, true))
	if err != nil {
		return err
	}
	token, err := echoapi.GenerateToken(cli.conf, p)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
