package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabrielfriasw/srf-escolas-sub000/core/exam"
)

var (
	errAborted              = errors.New("aborted")
	errConfirmationRequired = errors.New("not a terminal: pass -yes to confirm")
)

// confirm asks a yes/no question on the terminal.
func (cli *commandLine) confirm(question string) (bool, error) {
	if !isTerminalFunc(stdinFd()) {
		return false, errConfirmationRequired
	}
	fmt.Fprint(cli.stdout, question)
	answer, err := bufio.NewReader(cli.stdin).ReadString('\n')
	if err != nil && answer == "" {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func (cli *commandLine) deleteSession(id string) error {
	if err := cli.examSvc.DeleteSession(context.Background(), id); err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout, "deleted exam session %s\n", id)
	return nil
}

func (cli *commandLine) setStatus(id string, status exam.Status) error {
	sess, err := cli.examSvc.SetStatus(context.Background(), id, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout, "exam session %s is %s\n", sess.ID, sess.Status)
	return nil
}
