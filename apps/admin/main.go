package main

import (
	"log"
	"os"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/storage/database"
	sqlxrepos "github.com/trezcool/tuzo/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// start CLI
	cli := commandLine{
		db:         db,
		sqlDB:      db.DB.DB,
		usrRepo:    sqlxrepos.NewUserRepository(db),
		walletRepo: sqlxrepos.NewWalletRepository(db),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
