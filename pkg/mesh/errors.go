package mesh

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry is matched by every fatal geometry failure.
var ErrInvalidGeometry = errors.New("invalid geometry")

// InvalidGeometryError aborts GenerateMesh. Op names the failing phase.
type InvalidGeometryError struct {
	Op  string
	Err error
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("mesh: %s: %s: %v", ErrInvalidGeometry, e.Op, e.Err)
}

// Unwrap returns the kernel error.
func (e *InvalidGeometryError) Unwrap() error { return e.Err }

// Is matches ErrInvalidGeometry.
func (e *InvalidGeometryError) Is(target error) bool { return target == ErrInvalidGeometry }
