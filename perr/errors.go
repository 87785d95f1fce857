// Package perr names the error kinds raised by the alignment kernel, so
// callers can distinguish them with errors.As instead of parsing messages.
package perr

import "fmt"

// ConfigError marks an invalid environment value or an inconsistent option
// combination (e.g. alpha <= 0 under variational Bayes).
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Msg, e.Err)
	}
	return "config: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError builds a ConfigError from a format string.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// WrapConfigError wraps an underlying error as a ConfigError.
func WrapConfigError(msg string, err error) *ConfigError {
	return &ConfigError{Msg: msg, Err: err}
}

// WireFormatError marks a malformed mapper input line, a malformed shuffle
// record, or an unknown meta key.
type WireFormatError struct {
	Msg string
	Err error
}

func (e *WireFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire format: %s: %v", e.Msg, e.Err)
	}
	return "wire format: " + e.Msg
}

func (e *WireFormatError) Unwrap() error { return e.Err }

func NewWireFormatError(format string, args ...any) *WireFormatError {
	return &WireFormatError{Msg: fmt.Sprintf(format, args...)}
}

func WrapWireFormatError(msg string, err error) *WireFormatError {
	return &WireFormatError{Msg: msg, Err: err}
}

// StorageError marks shard-file problems: size not a record-size multiple,
// or open/stat/mmap/read/write/close failures.
type StorageError struct {
	Msg string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage: %s: %v", e.Msg, e.Err)
	}
	return "storage: " + e.Msg
}

func (e *StorageError) Unwrap() error { return e.Err }

func NewStorageError(format string, args ...any) *StorageError {
	return &StorageError{Msg: fmt.Sprintf(format, args...)}
}

func WrapStorageError(msg string, err error) *StorageError {
	return &StorageError{Msg: msg, Err: err}
}

// InvariantViolation marks a misuse of a component: a writer given entries
// out of order, a reducer stepping past end-of-input, a combiner
// constructed with a t-table writer.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return "invariant violation: " + e.Msg }

func NewInvariantViolation(format string, args ...any) *InvariantViolation {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}
