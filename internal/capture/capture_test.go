package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
)

type fakeStream struct {
	frames chan image.Image
	closed bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan image.Image)}
}

func (s *fakeStream) Frames() <-chan image.Image { return s.frames }
func (s *fakeStream) Close() error {
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}

type fakeOpener struct {
	probeState PermissionState
	probeErr   error
	openErr    error
	stream     *fakeStream
	openedWith Constraints
}

func (o *fakeOpener) Probe(_ context.Context, _ string) (PermissionState, error) {
	return o.probeState, o.probeErr
}

func (o *fakeOpener) Open(_ context.Context, _ string, c Constraints) (Stream, error) {
	o.openedWith = c
	if o.openErr != nil {
		return nil, o.openErr
	}
	if o.stream == nil {
		o.stream = newFakeStream()
	}
	return o.stream, nil
}

func TestOpenRejectsInsecureRemoteCamera(t *testing.T) {
	m := NewManager("http://camera.example.com/stream", &fakeOpener{})

	_, err := m.Open(context.Background(), DefaultConstraints())

	var precond *PreconditionError
	if !errors.As(err, &precond) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	if precond.Reason != ReasonInsecureContext {
		t.Fatalf("expected %s, got %s", ReasonInsecureContext, precond.Reason)
	}
}

func TestOpenAllowsLoopbackOverPlainHTTP(t *testing.T) {
	for _, host := range []string{"localhost", "127.0.0.1"} {
		m := NewManager(fmt.Sprintf("http://%s:8081/stream", host), &fakeOpener{})
		handle, err := m.Open(context.Background(), DefaultConstraints())
		if err != nil {
			t.Fatalf("loopback host %s must pass the secure check: %v", host, err)
		}
		handle.Close()
	}
}

func TestOpenWithoutBackendIsUnsupported(t *testing.T) {
	m := NewManager("https://camera.local/stream", nil)

	_, err := m.Open(context.Background(), DefaultConstraints())

	var precond *PreconditionError
	if !errors.As(err, &precond) || precond.Reason != ReasonUnsupportedBrowser {
		t.Fatalf("expected unsupported precondition, got %v", err)
	}
}

func TestOpenWithoutDeviceURLIsUnsupported(t *testing.T) {
	m := NewManager("", &fakeOpener{})

	_, err := m.Open(context.Background(), DefaultConstraints())

	var precond *PreconditionError
	if !errors.As(err, &precond) || precond.Reason != ReasonUnsupportedBrowser {
		t.Fatalf("expected unsupported precondition, got %v", err)
	}
}

func TestOpenPassesTypedErrorsThrough(t *testing.T) {
	wantPerm := &PermissionError{Err: errors.New("denied")}
	m := NewManager("https://camera.local/stream", &fakeOpener{openErr: wantPerm})

	_, err := m.Open(context.Background(), DefaultConstraints())
	if !errors.As(err, &wantPerm) {
		t.Fatalf("expected PermissionError passthrough, got %v", err)
	}

	wantDev := &DeviceError{Kind: DeviceNotReadable}
	m = NewManager("https://camera.local/stream", &fakeOpener{openErr: wantDev})
	_, err = m.Open(context.Background(), DefaultConstraints())
	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Kind != DeviceNotReadable {
		t.Fatalf("expected not-readable device error, got %v", err)
	}
}

func TestOpenWrapsUnclassifiedErrorsAsUnknown(t *testing.T) {
	m := NewManager("https://camera.local/stream", &fakeOpener{openErr: errors.New("boom")})

	_, err := m.Open(context.Background(), DefaultConstraints())

	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Kind != DeviceUnknown {
		t.Fatalf("expected unknown device error, got %v", err)
	}
}

func TestOpenForwardsAdvisoryConstraints(t *testing.T) {
	opener := &fakeOpener{}
	m := NewManager("https://camera.local/stream", opener)

	handle, err := m.Open(context.Background(), DefaultConstraints())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer handle.Close()

	if opener.openedWith.IdealWidth != 1280 || opener.openedWith.IdealHeight != 720 {
		t.Fatalf("expected 1280x720 preference, got %+v", opener.openedWith)
	}
	if opener.openedWith.FacingMode != "environment" {
		t.Fatalf("expected rear-facing preference, got %q", opener.openedWith.FacingMode)
	}
}

func TestProbeIsAdvisoryOnly(t *testing.T) {
	m := NewManager("https://camera.local/stream", &fakeOpener{probeErr: errors.New("probe broken")})
	if state := m.Probe(context.Background()); state != PermissionUnknown {
		t.Fatalf("probe failure must degrade to unknown, got %s", state)
	}

	m = NewManager("https://camera.local/stream", &fakeOpener{probeState: PermissionGranted})
	if state := m.Probe(context.Background()); state != PermissionGranted {
		t.Fatalf("expected granted, got %s", state)
	}
}

func TestHandleCloseIsIdempotentAndNilSafe(t *testing.T) {
	var nilHandle *Handle
	nilHandle.Close() // must not panic

	stream := newFakeStream()
	handle := &Handle{stream: stream}
	handle.Close()
	handle.Close()
	handle.Close()

	if !stream.closed {
		t.Fatalf("expected underlying stream closed")
	}

	// Frames on a closed handle still yields a drained channel.
	if _, ok := <-handle.Frames(); ok {
		t.Fatalf("expected closed frame channel")
	}
}
