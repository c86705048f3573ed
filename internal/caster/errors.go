package caster

import (
	"errors"
	"fmt"

	"voxelcaster/internal/device"
)

// Kind classifies caster failures by how callers should react to them.
type Kind int

const (
	// KindCapability: no device can share memory with the display.
	// Fatal at initialisation.
	KindCapability Kind = iota + 1
	// KindBuild: kernel source failed to compile. Carries the build log.
	KindBuild
	// KindRegistry: duplicate or missing buffer/kernel name.
	KindRegistry
	// KindValidation: unbound argument slot or dispatch without a current
	// validation.
	KindValidation
	// KindExecution: a frame failed during acquire, dispatch, release or
	// finish. Only that frame is lost.
	KindExecution
	// KindDevice: any other device failure during setup or teardown.
	KindDevice
)

func (k Kind) String() string {
	switch k {
	case KindCapability:
		return "capability"
	case KindBuild:
		return "build"
	case KindRegistry:
		return "registry"
	case KindValidation:
		return "validation"
	case KindExecution:
		return "execution"
	case KindDevice:
		return "device"
	default:
		return "unknown"
	}
}

// Code is the numeric status reported to callers that predate Kind.
type Code int

const (
	CodeSharingNotSupported Code = 800
	CodeOpenCLNotSupported  Code = 801
	CodeOpenCLError         Code = 802
	CodeErr                 Code = 803
)

func (c Code) String() string {
	switch c {
	case CodeSharingNotSupported:
		return "SHARING_NOT_SUPPORTED"
	case CodeOpenCLNotSupported:
		return "OPENCL_NOT_SUPPORTED"
	case CodeOpenCLError:
		return "OPENCL_ERROR"
	case CodeErr:
		return "ERR"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

var (
	ErrNoDevice           = errors.New("no interop-capable compute device")
	ErrSharingUnsupported = errors.New("device cannot share memory with the display")
	ErrBuild              = errors.New("kernel build failed")
	ErrNotFound           = errors.New("name not registered")
	ErrDuplicate          = errors.New("name already registered")
	ErrArgIndex           = errors.New("argument index out of range")
	ErrUnbound            = errors.New("argument slot unbound")
	ErrNotValidated       = errors.New("bindings not validated")
	ErrInvalid            = errors.New("invalid argument")
	ErrDevice             = errors.New("device operation failed")
	ErrExecution          = errors.New("frame execution failed")
	ErrClosed             = errors.New("caster closed")
)

// Error is the error type returned by every Caster operation. It unwraps to
// its sentinel and to the device error that caused it, if any.
type Error struct {
	Kind   Kind
	Code   Code
	Op     string
	Name   string
	Detail string
	// Status is the device status that caused the failure, or
	// device.StatusSuccess when the failure was detected by the caster.
	Status device.Status
	// Log is the compiler output of a failed build.
	Log string

	sentinel error
	cause    error
}

func (e *Error) Error() string {
	msg := "caster: " + e.Op
	if e.Name != "" {
		msg += " " + e.Name
	}
	msg += ": " + e.sentinel.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.sentinel}
	}
	return []error{e.sentinel, e.cause}
}

func newError(kind Kind, code Code, sentinel error, op, name string, cause error) *Error {
	e := &Error{Kind: kind, Code: code, Op: op, Name: name, sentinel: sentinel, cause: cause}
	var se *device.StatusError
	if errors.As(cause, &se) {
		e.Status = se.Status
		e.Log = se.Log
	}
	return e
}

func (e *Error) withDetail(format string, args ...any) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

func registryError(sentinel error, op, name string) *Error {
	return newError(KindRegistry, CodeErr, sentinel, op, name, nil)
}

func validationError(sentinel error, op, name string) *Error {
	return newError(KindValidation, CodeErr, sentinel, op, name, nil)
}

func deviceError(op, name string, cause error) *Error {
	return newError(KindDevice, CodeOpenCLError, ErrDevice, op, name, cause)
}

func executionError(op string, cause error) *Error {
	return newError(KindExecution, CodeOpenCLError, ErrExecution, op, "", cause)
}

// KindOf returns the Kind of err, or 0 if err did not come from a Caster.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StatusOf returns the device status preserved in err.
func StatusOf(err error) device.Status {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	var se *device.StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return device.StatusSuccess
}

// BuildLog returns the compiler output carried by a build error.
func BuildLog(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Log
	}
	return ""
}
