package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/clementsan/poresize/internal/models"
)

// Process exit status
const (
	exitOK         = 0
	exitConfig     = 1
	exitUnexpected = 2
	exitIO         = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and maps the outcome to an exit status.
// Panics are recovered and reported as unexpected failures.
func run(args []string, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "Error: unexpected failure: %v\n", r)
			code = exitUnexpected
		}
	}()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	var ce *models.ConfigError
	var ie *models.IOError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ce):
		return exitConfig
	case errors.As(err, &ie):
		return exitIO
	default:
		return exitUnexpected
	}
}
