// Package handle validates the short opaque identifiers used as primary
// keys across partitions and volumes.
package handle

import (
	"fmt"
	"regexp"
)

var pattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// BadHandle reports a handle that fails the validity regex.
type BadHandle struct {
	Value string
}

func (e *BadHandle) Error() string {
	return fmt.Sprintf("bad handle %q: must match %s", e.Value, pattern.String())
}

// Validate checks a handle against ^[A-Za-z0-9_-]+$.
func Validate(h string) error {
	if !pattern.MatchString(h) {
		return &BadHandle{Value: h}
	}
	return nil
}
