// Package capture manages the lifecycle of the terminal's frame source: it
// checks environment preconditions, probes camera permission, acquires the
// device and guarantees release on every exit path.
package capture

import (
	"context"
	"image"
	"net/url"
	"sync"
)

// PermissionState is the advisory camera permission state. It is populated by
// a best-effort probe and only pre-seeds UI state; acquisition is attempted
// regardless.
type PermissionState string

const (
	PermissionUnknown PermissionState = "unknown"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// Constraints describe the preferred capture configuration. Preferences are
// advisory: a device that cannot satisfy them still opens.
type Constraints struct {
	FacingMode  string
	IdealWidth  int
	IdealHeight int
}

// DefaultConstraints prefers a rear-facing camera at 1280x720.
func DefaultConstraints() Constraints {
	return Constraints{FacingMode: "environment", IdealWidth: 1280, IdealHeight: 720}
}

// Stream is a live frame source. Frames is closed when the stream ends;
// Close is idempotent.
type Stream interface {
	Frames() <-chan image.Image
	Close() error
}

// Opener is a capture backend. Probe reports advisory permission state; Open
// acquires the device, returning the typed capture errors for mappable
// failures.
type Opener interface {
	Probe(ctx context.Context, deviceURL string) (PermissionState, error)
	Open(ctx context.Context, deviceURL string, c Constraints) (Stream, error)
}

// Manager owns the capture device for the terminal.
type Manager struct {
	deviceURL string
	opener    Opener
}

func NewManager(deviceURL string, opener Opener) *Manager {
	return &Manager{deviceURL: deviceURL, opener: opener}
}

// checkPreconditions runs the environment checks in order, stopping at the
// first failure. No device request is made unless all pass.
func (m *Manager) checkPreconditions() error {
	u, parseErr := url.Parse(m.deviceURL)

	// The camera endpoint must be served over TLS or live on this machine.
	if parseErr == nil && m.deviceURL != "" && u.Scheme != "https" && !isLoopbackHost(u.Hostname()) {
		return &PreconditionError{Reason: ReasonInsecureContext}
	}
	if m.opener == nil {
		return &PreconditionError{Reason: ReasonUnsupportedBrowser}
	}
	if parseErr != nil || m.deviceURL == "" || u.Scheme == "" || u.Host == "" {
		return &PreconditionError{Reason: ReasonUnsupportedBrowser}
	}
	return nil
}

func isLoopbackHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// Probe queries the backend for permission state. Probing is advisory only:
// any probe failure degrades to PermissionUnknown and never gates Open.
func (m *Manager) Probe(ctx context.Context) PermissionState {
	if m.opener == nil {
		return PermissionUnknown
	}
	state, err := m.opener.Probe(ctx, m.deviceURL)
	if err != nil || state == "" {
		return PermissionUnknown
	}
	return state
}

// Open checks preconditions and acquires the device. Failures come back as
// *PreconditionError, *PermissionError or *DeviceError; anything unclassified
// from the backend is wrapped as DeviceUnknown.
func (m *Manager) Open(ctx context.Context, c Constraints) (*Handle, error) {
	if err := m.checkPreconditions(); err != nil {
		return nil, err
	}

	stream, err := m.opener.Open(ctx, m.deviceURL, c)
	if err != nil {
		switch err.(type) {
		case *PermissionError, *DeviceError, *PreconditionError:
			return nil, err
		}
		return nil, &DeviceError{Kind: DeviceUnknown, Err: err}
	}
	return &Handle{stream: stream}, nil
}

// Handle is an acquired capture device. Close releases it and is safe to call
// from any state: nil handle, never-started, already-closed, or mid-decode.
type Handle struct {
	stream Stream
	once   sync.Once
}

// Frames exposes the live frame stream.
func (h *Handle) Frames() <-chan image.Image {
	if h == nil || h.stream == nil {
		closed := make(chan image.Image)
		close(closed)
		return closed
	}
	return h.stream.Frames()
}

// Close stops the underlying stream and releases the device.
func (h *Handle) Close() {
	if h == nil || h.stream == nil {
		return
	}
	h.once.Do(func() {
		_ = h.stream.Close()
	})
}
