package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Stage names the pipeline step an error came from.
type Stage int

const (
	StageUnknown Stage = iota
	StageConfig
	StageConnect
	StageQuery
	StageWrite
)

func (s Stage) String() string {
	switch s {
	case StageConfig:
		return "configuration error"
	case StageConnect:
		return "connection error"
	case StageQuery:
		return "query error"
	case StageWrite:
		return "write error"
	}
	return "error"
}

// ExitCode is the process status reported for a failure in this stage.
func (s Stage) ExitCode() int {
	switch s {
	case StageConnect:
		return 2
	case StageQuery:
		return 3
	case StageWrite:
		return 4
	}
	return 1
}

// StageError tags an error with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage.String() + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, err error, format string, args ...interface{}) error {
	if err == nil {
		err = errors.Errorf(format, args...)
	} else {
		err = errors.Wrapf(err, format, args...)
	}
	return &StageError{Stage: stage, Err: err}
}

func configError(err error, format string, args ...interface{}) error {
	return stageError(StageConfig, err, format, args...)
}

func connectionError(err error, format string, args ...interface{}) error {
	return stageError(StageConnect, err, format, args...)
}

func queryError(err error, format string, args ...interface{}) error {
	return stageError(StageQuery, err, format, args...)
}

func writeError(err error, format string, args ...interface{}) error {
	return stageError(StageWrite, err, format, args...)
}

func errorStage(e error) Stage {
	var se *StageError
	if errors.As(e, &se) {
		return se.Stage
	}
	return StageUnknown
}

func exitCode(e error) int {
	return errorStage(e).ExitCode()
}

func printErr(w io.Writer, e error, trace bool) {
	fmt.Fprintln(w, "An error occurred:", e)

	if !trace {
		return
	}

	// the deepest stack is the one closest to where things went wrong
	var st stackTracer
	for err := e; err != nil; err = errors.Unwrap(err) {
		if t, ok := err.(stackTracer); ok {
			st = t
		}
	}
	if st == nil {
		return
	}

	for i, v := range st.StackTrace() {
		fmt.Fprintf(w, "%d %+v\n", i, v)
	}
}
