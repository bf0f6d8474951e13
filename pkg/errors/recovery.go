package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError is the cause attached to errors built by RecoverPanic. It keeps
// the recovered value for callers that need to report it.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string {
	if err, ok := p.Value.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %v", p.Value)
}

func (p *PanicError) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}

// RecoverPanic converts a recovered value into a fatal internal error with
// the stack attached. It returns nil when r is nil.
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	return ErrInternal.
		WithCause(&PanicError{Value: r}).
		WithDetail("panic", true).
		WithDetail("stack_trace", string(debug.Stack())).
		AsFatal()
}

func RecoverPanicWithCallback(r interface{}, callback func(error)) error {
	err := RecoverPanic(r)
	if err != nil && callback != nil {
		callback(err)
	}
	return err
}

// Safely runs fn and turns a panic into an error.
func Safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = RecoverPanic(r)
		}
	}()
	return fn()
}
