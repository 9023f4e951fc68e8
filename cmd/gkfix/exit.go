package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/rwool/gkfix/fixture"
)

// exitStatus ends the program with a status after its message was already
// printed.
type exitStatus int

func (e exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// exitCode maps err to the process exit status, printing it unless that was
// already done. Sessions pass their own status through.
func exitCode(err error, errOut io.Writer) int {
	if err == nil {
		return 0
	}

	var st exitStatus
	if errors.As(err, &st) {
		return int(st)
	}
	var sessionErr *fixture.ExitError
	if errors.As(err, &sessionErr) {
		return sessionErr.Code
	}

	fmt.Fprintf(errOut, "gkfix: %v\n", err)
	return 1
}
