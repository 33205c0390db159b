package protocol

import (
	"errors"
	"fmt"
)

// ErrFraming is returned when a length prefix cannot be decoded because the
// buffer is empty or shorter than the width its tag bits announce.
var ErrFraming = errors.New("framing error")

// UnderrunError reports a read past the end of a packet payload.
type UnderrunError struct {
	Op   string
	Need int
	Have int
}

func (e *UnderrunError) Error() string {
	return fmt.Sprintf("underrun reading %s: need %d bytes, have %d", e.Op, e.Need, e.Have)
}

// IsUnderrun reports whether err is (or wraps) an UnderrunError.
func IsUnderrun(err error) bool {
	var u *UnderrunError
	return errors.As(err, &u)
}
