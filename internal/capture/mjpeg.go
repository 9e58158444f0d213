package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MJPEGOpener consumes a network camera publishing an MJPEG stream
// (multipart/x-mixed-replace of JPEG parts), the standard push format for IP
// cameras. HTTP status codes are mapped onto the capture error taxonomy the
// same way a browser maps getUserMedia failures.
type MJPEGOpener struct {
	Client *http.Client
}

func NewMJPEGOpener() *MJPEGOpener {
	// No overall client timeout: the stream is long-lived. Dial and header
	// phases are bounded instead.
	return &MJPEGOpener{
		Client: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
				ResponseHeaderTimeout: 10 * time.Second,
			},
		},
	}
}

// Probe issues a HEAD request to pre-seed permission state. Errors are
// reported but callers treat them as advisory.
func (o *MJPEGOpener) Probe(ctx context.Context, deviceURL string) (PermissionState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, deviceURL, nil)
	if err != nil {
		return PermissionUnknown, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return PermissionUnknown, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return PermissionDenied, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return PermissionGranted, nil
	default:
		return PermissionUnknown, nil
	}
}

// Open acquires the stream. Resolution and facing preferences are passed as
// query parameters; cameras that ignore them still open, the preference is
// never mandatory.
func (o *MJPEGOpener) Open(ctx context.Context, deviceURL string, c Constraints) (Stream, error) {
	u, err := url.Parse(deviceURL)
	if err != nil {
		return nil, &DeviceError{Kind: DeviceNotFound, Err: err}
	}
	q := u.Query()
	if c.IdealWidth > 0 {
		q.Set("width", strconv.Itoa(c.IdealWidth))
	}
	if c.IdealHeight > 0 {
		q.Set("height", strconv.Itoa(c.IdealHeight))
	}
	if c.FacingMode != "" {
		q.Set("facing", c.FacingMode)
	}
	u.RawQuery = q.Encode()

	// The stream outlives the opening call; cancellation happens via Close,
	// not the caller's context.
	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, &DeviceError{Kind: DeviceNotFound, Err: err}
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, &DeviceError{Kind: DeviceUnknown, Err: ctx.Err()}
		}
		return nil, &DeviceError{Kind: DeviceNotFound, Err: err}
	}

	if mapped := classifyStatus(resp.StatusCode); mapped != nil {
		resp.Body.Close()
		cancel()
		return nil, mapped
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, &DeviceError{
			Kind: DeviceNotSupported,
			Err:  fmt.Errorf("camera returned %q, want an MJPEG multipart stream", resp.Header.Get("Content-Type")),
		}
	}

	s := &mjpegStream{
		cancel: cancel,
		body:   resp.Body,
		frames: make(chan image.Image),
		done:   make(chan struct{}),
	}
	go s.run(multipart.NewReader(resp.Body, params["boundary"]))
	return s, nil
}

// classifyStatus maps acquisition status codes to semantic errors. A nil
// return means the status is acceptable.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &PermissionError{Err: fmt.Errorf("camera returned status %d", status)}
	case status == http.StatusNotFound || status == http.StatusGone:
		return &DeviceError{Kind: DeviceNotFound, Err: fmt.Errorf("camera returned status %d", status)}
	case status == http.StatusConflict || status == http.StatusLocked || status == http.StatusServiceUnavailable:
		// Another consumer holds the camera.
		return &DeviceError{Kind: DeviceNotReadable, Err: fmt.Errorf("camera returned status %d", status)}
	case status == http.StatusNotAcceptable || status == http.StatusUnsupportedMediaType:
		return &DeviceError{Kind: DeviceNotSupported, Err: fmt.Errorf("camera returned status %d", status)}
	default:
		return &DeviceError{Kind: DeviceUnknown, Err: fmt.Errorf("camera returned status %d", status)}
	}
}

type mjpegStream struct {
	cancel    context.CancelFunc
	body      interface{ Close() error }
	frames    chan image.Image
	done      chan struct{}
	closeOnce sync.Once
}

func (s *mjpegStream) Frames() <-chan image.Image { return s.frames }

func (s *mjpegStream) run(parts *multipart.Reader) {
	defer close(s.frames)
	for {
		part, err := parts.NextPart()
		if err != nil {
			// Stream ended or was closed under us; either way we are done.
			return
		}
		img, err := jpeg.Decode(part)
		part.Close()
		if err != nil {
			// A torn frame is not fatal, keep reading.
			log.Printf("[capture] skipping undecodable frame: %v", err)
			continue
		}
		select {
		case s.frames <- img:
		case <-s.done:
			return
		}
	}
}

// Close tears the stream down: cancels the request, closes the body so the
// part reader unblocks, and stops frame delivery. Idempotent.
func (s *mjpegStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		err = s.body.Close()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
