// Package backuperr defines the failure kinds a backup run can surface.
//
// Every pipeline stage wraps its failures in *Error so callers can branch on
// the kind with errors.Is and still read the table, phase and path that failed.
package backuperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConnection = errors.New("connection error")
	ErrSchema     = errors.New("schema error")
	ErrStructure  = errors.New("structure error")
	ErrData       = errors.New("data error")
	ErrIO         = errors.New("io error")
	ErrArchive    = errors.New("archive error")
	ErrUpload     = errors.New("upload error")
)

type Error struct {
	// Kind is one of the Err* sentinels above.
	Kind  error
	Phase string
	Table string
	Path  string
	Err   error
}

func New(kind error, phase string, err error) *Error {
	return &Error{Kind: kind, Phase: phase, Err: err}
}

func (e *Error) WithTable(table string) *Error {
	e.Table = table
	return e
}

func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("backup error")
	}
	if e.Phase != "" {
		fmt.Fprintf(&b, " (%s)", e.Phase)
	}
	if e.Table != "" {
		fmt.Fprintf(&b, " table=%s", e.Table)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " path=%s", e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf returns the sentinel kind of the first *Error in err's chain, or nil.
func KindOf(err error) error {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return nil
}
