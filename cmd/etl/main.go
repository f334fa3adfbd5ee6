// Command etl runs the sales ETL pipeline.
//
//	etl run --config pipeline.yaml          run the pipeline
//	etl check --config pipeline.yaml        data-quality gate over the raw sources
//	etl config validate --config FILE       lint a pipeline file
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"salesetl/internal/pipeline"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "salesetl/internal/storage/all"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1 // the run or a check failed
	exitConfig = 2 // the run could not start
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "etl: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var ce *configError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ce), pipeline.IsConfigError(err):
		return exitConfig
	default:
		return exitFailed
	}
}

// configError marks failures to load or validate the configuration.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }
