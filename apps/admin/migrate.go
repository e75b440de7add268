package main

import (
	"github.com/gabrielfriasw/srf-escolas-sub000/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(cli.db, args[0], arguments...)
}
