package main

import (
	"log"
	"os"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/enrollment"
	"github.com/kagisom/imfundo/core/user"
	emailsvc "github.com/kagisom/imfundo/services/email"
	logsvc "github.com/kagisom/imfundo/services/logger"
	"github.com/kagisom/imfundo/storage/database"
	sqlxrepos "github.com/kagisom/imfundo/storage/database/sqlx"
)

var std *log.Logger

func main() {
	defer os.Exit(0)

	std = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(false)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	mailSvc := emailsvc.NewConsoleService(conf)
	userRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(userRepo, mailSvc, conf)
	enrollRepo := sqlxrepos.NewEnrollmentRepository(db)
	enrollSvc := enrollment.NewService(db, enrollRepo, usrSvc, mailSvc, logger, conf)

	// start CLI
	cli := commandLine{
		db:         db,
		conf:       conf,
		logger:     logger,
		usrSvc:     usrSvc,
		userRepo:   userRepo,
		enrollSvc:  enrollSvc,
		enrollRepo: enrollRepo,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		std.Fatal(err)
	}
}
