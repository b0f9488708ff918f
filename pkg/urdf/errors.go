package urdf

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by ParseError.
var (
	// ErrNoRobot is returned when the document has no <robot> root element.
	ErrNoRobot = errors.New("urdf: missing <robot> root element")

	// ErrNoLinks is returned when the robot declares no usable links.
	ErrNoLinks = errors.New("urdf: robot has no links")

	// ErrNoRoot is returned when every link is some joint's child.
	ErrNoRoot = errors.New("urdf: no root link (every link is a joint child)")
)

// ParseError is a fatal description error. The caller must abort the load.
type ParseError struct {
	// Source names the document (file path, URL, or "<bytes>").
	Source string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// WarningKind classifies a non-fatal description problem.
type WarningKind string

const (
	WarnMissingLink      WarningKind = "missing_link"       // Joint without parent or child; skipped
	WarnFallbackGeometry WarningKind = "fallback_geometry"  // Unknown or missing primitive; box substituted
	WarnAmbiguousRoot    WarningKind = "ambiguous_root"     // Several root candidates; first one used
	WarnUnknownJointType WarningKind = "unknown_joint_type" // Treated as fixed
	WarnBadNumber        WarningKind = "bad_number"         // Attribute default used instead
	WarnDuplicate        WarningKind = "duplicate"          // Repeated link or joint name; later one skipped
	WarnAttach           WarningKind = "attach"             // Joint could not be attached (cycle, second parent)
)

// Warning is a non-fatal problem found while parsing. The tree stays usable.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Element string      `json:"element"` // Name of the offending link or joint
	Message string      `json:"message"`
}

// String formats the warning for logs.
func (w Warning) String() string {
	return fmt.Sprintf("%s [%s]: %s", w.Element, w.Kind, w.Message)
}
