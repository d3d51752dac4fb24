package main

import (
	"context"
	"log"
	"os"
	"time"

	dig_container "github.com/trezcool/daftari/apps/api/di/dig"
	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/audit"
	"github.com/trezcool/daftari/core/person"
	"github.com/trezcool/daftari/storage/database"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	cli := &commandLine{out: os.Stdout}
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		os.Exit(runMigrate(cli))
	}
	os.Exit(runCommand(cli))
}

// runMigrate connects to postgres without the container, which would migrate up on its own.
func runMigrate(cli *commandLine) int {
	cli.conf = core.NewConfig()
	if cli.conf.Storage.Backend == core.StoragePostgres {
		errAndDie(database.CreateIfNotExist(context.Background(), cli.conf))
		db, err := database.Open(cli.conf)
		errAndDie(err)
		defer db.Close()
		cli.db = db.DB
	}
	return exitCode(cli.run(os.Args))
}

func runCommand(cli *commandLine) int {
	code := 0
	err := dig_container.New().Invoke(func(
		conf *core.Config,
		closeStorage dig_container.StorageCloser,
		recorder *audit.AsyncRecorder,
		people *person.Service,
		personDB person.Repository,
		auditSvc *audit.Service,
	) {
		cli.conf = conf
		cli.people = people
		cli.personDB = personDB
		cli.audit = auditSvc

		code = exitCode(cli.run(os.Args))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := recorder.Close(ctx); err != nil {
			logger.Printf("flushing audit entries: %v", err)
		}
		if err := closeStorage(ctx); err != nil {
			logger.Printf("closing storage: %v", err)
		}
	})
	errAndDie(err)
	return code
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if err != errHelp {
		logger.Printf("error: %s", err)
	}
	return 1
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
