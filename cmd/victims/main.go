// Victims scans a file tree for Java, Python, and RPM packages with known
// vulnerabilities.
//
// The scan subcommand exits with one of:
//
//	0 no vulnerable packages found
//	1 vulnerable packages found
//	2 internal error, including an unusable corpus
//	3 some artifacts couldn't be checked and nothing vulnerable was found
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes.
const (
	exitOK         = 0
	exitFound      = 1
	exitInternal   = 2
	exitIncomplete = 3
)

// ExitError carries a process exit status out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(stderr, ee.msg)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "victims: %v\n", err)
	return exitInternal
}
