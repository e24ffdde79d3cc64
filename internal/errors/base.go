package errors

import (
	"errors"
	"fmt"
)

var (
	_ error = (*wrappedError)(nil)
)

func New(text string) error {
	return errors.New(text)
}

// Wrap annotates err with text. A nil err stays nil so call sites can wrap unconditionally.
func Wrap(err error, text string) error {
	if err == nil {
		return nil
	}

	if len(text) == 0 {
		return err
	}

	return &wrappedError{
		err: err,
		msg: text,
	}
}

// Wrapf is Wrap with a formatted annotation.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return Wrap(err, fmt.Sprintf(format, args...))
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

type wrappedError struct {
	err error
	msg string
}

const sep = ", err: "

func (err wrappedError) Error() string {
	if err.err == nil {
		return err.msg
	}

	return err.msg + sep + err.err.Error()
}

func (err wrappedError) Unwrap() error {
	if err.err == nil {
		return errors.New(err.msg)
	}

	return err.err
}
