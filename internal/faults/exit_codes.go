package faults

import (
	"context"
	"errors"
)

// Exit codes for the CLI. 0=success, 1=general, then one code per fault kind.
const (
	ExitSuccess  = 0
	ExitGeneral  = 1
	ExitUsage    = 2
	ExitSource   = 3
	ExitRender   = 4
	ExitAssembly = 5
	ExitAborted  = 130
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		cfgErr *ConfigurationError
		srcErr *SourceReadError
		rndErr *RenderError
		asmErr *AssemblyError
	)
	switch {
	case errors.As(err, &cfgErr):
		return ExitUsage
	case errors.As(err, &srcErr):
		return ExitSource
	case errors.As(err, &rndErr):
		return ExitRender
	case errors.As(err, &asmErr):
		return ExitAssembly
	case errors.Is(err, context.Canceled):
		return ExitAborted
	}
	return ExitGeneral
}
