package tagsfile

import (
	"errors"
	"fmt"
)

// ErrUnavailable matches any ConfigError via errors.Is.
var ErrUnavailable = errors.New("tags file unavailable")

// ConfigError reports a tags file that could not be opened or read. It is
// fatal to the load that produced it.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tags file %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool {
	return target == ErrUnavailable
}

// Warning describes a tags-file line that was skipped. Warnings never abort
// a parse.
type Warning struct {
	Path   string
	Line   int
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s:%d: %s", w.Path, w.Line, w.Reason)
}
