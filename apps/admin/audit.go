package main

import (
	"context"
	"fmt"
	"time"
)

func (cli *commandLine) pruneAudit(ctx context.Context, before time.Time) error {
	n, err := cli.audit.Prune(ctx, cli.caller(), before)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %d audit entries older than %s\n", n, before.Format(time.RFC3339))
	return nil
}
