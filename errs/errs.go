// Package errs defines the stable error taxonomy shared by every package in
// the scheduler: fallible operations return a plain error that is always an
// *Info, never a panic and never a bare sentinel string.
package errs

import "fmt"

// Code is one of the stable, string-valued error codes from the taxonomy.
// The numeric representation is an implementation detail; only the string
// form is part of the contract.
type Code string

const (
	Success                  Code = "Success"
	UnknownError             Code = "UnknownError"
	InvalidArgument          Code = "InvalidArgument"
	OperationTimeout         Code = "OperationTimeout"
	OperationCanceled        Code = "OperationCanceled"
	ResourceAllocationFailed Code = "ResourceAllocationFailed"
	ResourceLimitReached     Code = "ResourceLimitReached"
	IOError                  Code = "IOError"
	ThreadAlreadyRunning     Code = "ThreadAlreadyRunning"
	ThreadNotRunning         Code = "ThreadNotRunning"
	MutexError               Code = "MutexError"
	QueueStopped             Code = "QueueStopped"
	QueueEmpty               Code = "QueueEmpty"
	QueueFull                Code = "QueueFull"
	JobInvalid               Code = "JobInvalid"
	JobExecutionFailed       Code = "JobExecutionFailed"
	CircuitOpen              Code = "CircuitOpen"
)

// Info is the error value returned by every fallible operation in the
// module. It carries enough context to log and to branch on, without
// resorting to panics.
type Info struct {
	Code    Code
	Message string
	Module  string
	Details map[string]string
}

// New builds an *Info for the given code, message and owning module.
func New(code Code, module, message string) *Info {
	return &Info{Code: code, Message: message, Module: module}
}

// WithDetail attaches a key/value pair and returns the same *Info for
// chaining.
func (e *Info) WithDetail(key, value string) *Info {
	if e.Details == nil {
		e.Details = make(map[string]string, 1)
	}
	e.Details[key] = value
	return e
}

func (e *Info) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Module, e.Code, e.Message)
}

// Is lets errors.Is match two *Info values by code alone, so callers can
// write `errors.Is(err, errs.New(errs.QueueStopped, "", ""))` or, more
// idiomatically, `errs.CodeOf(err) == errs.QueueStopped`.
func (e *Info) Is(target error) bool {
	t, ok := target.(*Info)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the Code from err if it is (or wraps) an *Info, returns
// Success for a nil err, and UnknownError otherwise.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var info *Info
	if as(err, &info) {
		return info.Code
	}
	return UnknownError
}

// as is a tiny local copy of errors.As for a single concrete type, avoiding
// an import cycle concern and keeping this package dependency-free.
func as(err error, target **Info) bool {
	for err != nil {
		if info, ok := err.(*Info); ok {
			*target = info
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
