package capture

import "fmt"

// Precondition reasons.
const (
	ReasonInsecureContext    = "insecure-context"
	ReasonUnsupportedBrowser = "unsupported-browser"
)

// Device error kinds.
const (
	DeviceNotFound     = "not-found"
	DeviceNotReadable  = "not-readable"
	DeviceNotSupported = "not-supported"
	DeviceUnknown      = "unknown"
)

// PreconditionError means the environment cannot do capture at all (camera
// endpoint not secure, no capture backend configured). Fatal to the session;
// remediation happens outside the terminal.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("capture precondition failed: %s", e.Reason)
}

// PermissionError means the device refused access. Recoverable by retrying
// after access is granted.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera access denied: %v", e.Err)
	}
	return "camera access denied"
}

func (e *PermissionError) Unwrap() error { return e.Err }

// DeviceError classifies device-level acquisition failures. Recoverable by
// retrying, usually after freeing the camera or plugging one in.
type DeviceError struct {
	Kind string
	Err  error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera device error (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("camera device error (%s)", e.Kind)
}

func (e *DeviceError) Unwrap() error { return e.Err }
