package types

import (
	"errors"
	"fmt"
)

// FatalError reports a violated system invariant. It is never reported to a
// client: whoever receives one must stop the task.
type FatalError struct {
	Message string
	Err     error
}

func (err *FatalError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", err.Message, err.Err)
	}
	return "fatal: " + err.Message
}

func (err *FatalError) Unwrap() error { return err.Err }

func Fatalf(format string, args ...interface{}) *FatalError {
	return &FatalError{Message: fmt.Sprintf(format, args...)}
}

// FatalWrap marks `err` as fatal, preserving it for `errors.Is`/`errors.As`.
func FatalWrap(err error, format string, args ...interface{}) *FatalError {
	return &FatalError{Message: fmt.Sprintf(format, args...), Err: err}
}

func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// Errno is a recoverable, per-request failure. It travels back to the client
// as a negative status code.
type Errno int

const (
	EPERM        Errno = 1
	ENOENT       Errno = 2
	EIO          Errno = 5
	ENXIO        Errno = 6
	EBADF        Errno = 9
	EBUSY        Errno = 16
	EEXIST       Errno = 17
	EISDIR       Errno = 21
	EINVAL       Errno = 22
	ENFILE       Errno = 23
	EMFILE       Errno = 24
	ENOSPC       Errno = 28
	ENAMETOOLONG Errno = 36
)

var errnoNames = map[Errno]string{
	EPERM:        "operation not permitted",
	ENOENT:       "no such file or directory",
	EIO:          "i/o error",
	ENXIO:        "no such device or address",
	EBADF:        "bad file descriptor",
	EBUSY:        "resource busy",
	EEXIST:       "file exists",
	EISDIR:       "is a directory",
	EINVAL:       "invalid argument",
	ENFILE:       "file table overflow",
	EMFILE:       "too many open files",
	ENOSPC:       "no space left on device",
	ENAMETOOLONG: "file name too long",
}

func (errno Errno) Error() string {
	if name, ok := errnoNames[errno]; ok {
		return name
	}
	return fmt.Sprintf("errno %d", int(errno))
}

// Status returns the negative status code carried in a reply for `err`. A nil
// error yields 0 and any error that isn't an `Errno` yields `-EIO`.
func Status(err error) int {
	if err == nil {
		return 0
	}
	var errno Errno
	if errors.As(err, &errno) {
		return -int(errno)
	}
	return -int(EIO)
}
