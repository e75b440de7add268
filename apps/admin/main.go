package main

import (
	"log"
	"os"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/exam"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
	logsvc "github.com/gabrielfriasw/srf-escolas-sub000/services/logger"
	"github.com/gabrielfriasw/srf-escolas-sub000/storage/database"
	boiledrepos "github.com/gabrielfriasw/srf-escolas-sub000/storage/database/sqlboiler"
	sqlxrepos "github.com/gabrielfriasw/srf-escolas-sub000/storage/database/sqlx"
)

var logger *logsvc.RollbarLogger

func main() {
	conf := core.NewConfig()

	logger = logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	validate, translator := core.NewValidator()
	exam.InitValidators(validate, translator)
	rosterSvc := roster.NewService(boiledrepos.NewRosterRepository(db), validate)

	// start CLI
	cli := commandLine{
		db:        db,
		rosterSvc: rosterSvc,
		examSvc: exam.NewService(exam.ServiceDeps{
			Repo:     sqlxrepos.NewExamRepository(db),
			Classes:  rosterSvc,
			Validate: validate,
			Logger:   logger,
		}),
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("command failed: "+err.Error(), err)
		}
		os.Exit(1)
	}
}
