package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
)

var requiredColumns = []string{"class_name", "roll_number", "name"}

func (cli *commandLine) importRoster(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := readRoster(f)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	n, err := cli.rosterSvc.ImportStudents(context.Background(), rows)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout, "imported %d students\n", n)
	return nil
}

// readRoster parses a CSV roster. The first record is the header; column order is free.
func readRoster(r io.Reader) ([]roster.NewStudent, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, errors.Errorf("missing column %q", name)
		}
	}
	phoneCol, hasPhone := cols["guardian_phone"]

	var rows []roster.NewStudent
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		roll, err := strconv.Atoi(strings.TrimSpace(rec[cols["roll_number"]]))
		if err != nil {
			return nil, errors.Errorf("line %d: invalid roll number %q", line, rec[cols["roll_number"]])
		}
		row := roster.NewStudent{
			ClassName:  rec[cols["class_name"]],
			RollNumber: roll,
			Name:       rec[cols["name"]],
		}
		if hasPhone {
			row.GuardianPhone = rec[phoneCol]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
