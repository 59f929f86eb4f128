// Package main provides the vds command line tool: datasheet generation,
// VDS number inspection, and the HTTP server.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pipespec/valve-datasheet/internal/config"
	"github.com/pipespec/valve-datasheet/pkg/vds"
)

// errIO marks file read/write failures so they exit with their own code.
var errIO = errors.New("i/o error")

// Exit codes. A generated datasheet that carries validation errors still
// exits zero: the status lives in the payload, not the process result.
const (
	exitOK      = 0
	exitGeneric = 1
	exitDecode  = 2
	exitConfig  = 3
	exitIO      = 4
)

func exitCode(err error) int {
	var decodeErr *vds.DecodeError
	var pathErr *fs.PathError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &decodeErr):
		return exitDecode
	case errors.Is(err, config.ErrConfigInvalid):
		return exitConfig
	case errors.Is(err, errIO), errors.As(err, &pathErr):
		return exitIO
	}
	return exitGeneric
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
