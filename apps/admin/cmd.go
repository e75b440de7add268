package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/gabrielfriasw/srf-escolas-sub000/core/exam"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sqlx.DB
	rosterSvc *roster.Service
	examSvc   *exam.Service
	stdin     io.Reader
	stdout    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.stdout, "Usage:")
	fmt.Fprintln(cli.stdout, "  migrate COMMAND [ARGS]                 - run database migrations (up, down, status...)")
	fmt.Fprintln(cli.stdout, "  importroster -file PATH                - import students from a CSV file")
	fmt.Fprintln(cli.stdout, "  deletesession -id ID [-yes]            - delete an exam session and everything attached to it")
	fmt.Fprintln(cli.stdout, "  setstatus -id ID -status STATUS        - move an exam session to another status")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := flag.NewFlagSet("importroster", flag.ExitOnError)
	importFile := importCmd.String("file", "", "CSV file with the columns class_name,roll_number,name[,guardian_phone].")

	deleteCmd := flag.NewFlagSet("deletesession", flag.ExitOnError)
	deleteID := deleteCmd.String("id", "", "The exam session ID.")
	deleteYes := deleteCmd.Bool("yes", false, "Do not ask for confirmation.")

	statusCmd := flag.NewFlagSet("setstatus", flag.ExitOnError)
	statusID := statusCmd.String("id", "", "The exam session ID.")
	statusVal := statusCmd.String("status", "", "pending, in_progress or completed.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "importroster":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importRoster(*importFile)
	case "deletesession":
		if err := deleteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *deleteID == "" {
			deleteCmd.Usage()
			return errHelp
		}
		if !*deleteYes {
			ok, err := cli.confirm(fmt.Sprintf("Delete exam session %s with its allocations, attendance and seating? [y/N] ", *deleteID))
			if err != nil {
				return err
			}
			if !ok {
				return errAborted
			}
		}
		return cli.deleteSession(*deleteID)
	case "setstatus":
		if err := statusCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *statusID == "" || *statusVal == "" {
			statusCmd.Usage()
			return errHelp
		}
		return cli.setStatus(*statusID, exam.Status(*statusVal))
	default:
		cli.printUsage()
		return errHelp
	}
}

func stdinFd() int {
	return int(os.Stdin.Fd())
}
