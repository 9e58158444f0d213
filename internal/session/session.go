// Package session owns the terminal's scan-and-sell state: at most one active
// scan session, the cart, and the last-purchase projection. All lifecycle is
// explicit; every exit path releases the capture device.
package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"janpos/terminal/internal/backend"
	"janpos/terminal/internal/capture"
	"janpos/terminal/internal/cart"
	"janpos/terminal/internal/domain"
	"janpos/terminal/internal/jancode"
	"janpos/terminal/internal/scan"
	"janpos/terminal/internal/xid"
)

// ErrEmptyCart rejects a checkout with nothing to purchase.
var ErrEmptyCart = errors.New("cart is empty")

// Status is a snapshot of the controller for the terminal surface.
type Status struct {
	SessionID   string                  `json:"session_id,omitempty"`
	Active      bool                    `json:"active"`
	Permission  capture.PermissionState `json:"permission"`
	LastError   string                  `json:"last_error,omitempty"`
	NoiseFrames int64                   `json:"noise_frames"`
	Candidates  int64                   `json:"candidates"`
	LastProduct *domain.Product         `json:"last_product,omitempty"`
}

// Controller coordinates one terminal. The camera is exclusively held by at
// most one active session; opening a new one releases the previous handle
// first.
type Controller struct {
	capture *capture.Manager
	backend *backend.Client
	cart    *cart.Cart
	entry   *jancode.Entry

	// openMu serializes OpenScan so two racing opens cannot both hold the
	// camera.
	openMu sync.Mutex

	mu           sync.Mutex
	active       *scanSession
	permission   capture.PermissionState
	lastError    string
	noiseFrames  int64
	candidates   int64
	lastProduct  *domain.Product
	lastPurchase *domain.PurchaseSummary
}

type scanSession struct {
	id     string
	handle *capture.Handle
	loop   *scan.Loop
	once   sync.Once
}

// close releases the decode loop and then the device. Safe from any state
// and from any goroutine; it is the single teardown path for a session.
func (s *scanSession) close() {
	s.once.Do(func() {
		s.loop.Stop()
		s.handle.Close()
	})
}

func New(cm *capture.Manager, bc *backend.Client, crt *cart.Cart) *Controller {
	c := &Controller{
		capture:    cm,
		backend:    bc,
		cart:       crt,
		permission: capture.PermissionUnknown,
	}
	// Typing a 13th digit triggers the same lookup path as a scan, after the
	// entry debounce settles.
	c.entry = jancode.NewEntry(func(code string) {
		if _, err := c.SubmitCode(context.Background(), code); err != nil {
			log.Printf("[session] entry lookup failed for %s: %v", code, err)
		}
	})
	return c
}

// OpenScan starts a scan session: precondition checks, advisory permission
// probe, device acquisition, decode loop. An existing session is released
// first. Returns the new session id.
func (c *Controller) OpenScan(ctx context.Context) (string, error) {
	c.openMu.Lock()
	defer c.openMu.Unlock()

	c.closeActive()

	perm := c.capture.Probe(ctx)
	c.mu.Lock()
	c.permission = perm
	c.lastError = ""
	c.mu.Unlock()

	handle, err := c.capture.Open(ctx, capture.DefaultConstraints())
	if err != nil {
		c.mu.Lock()
		c.lastError = err.Error()
		var permErr *capture.PermissionError
		if errors.As(err, &permErr) {
			c.permission = capture.PermissionDenied
		}
		c.mu.Unlock()
		return "", err
	}

	sess := &scanSession{
		id:     xid.New("scan"),
		handle: handle,
		loop:   scan.NewLoop(),
	}
	events := sess.loop.Start(handle.Frames())

	c.mu.Lock()
	c.active = sess
	c.permission = capture.PermissionGranted
	c.noiseFrames = 0
	c.candidates = 0
	c.mu.Unlock()

	go c.run(sess, events)
	return sess.id, nil
}

// run consumes decode events until the session ends. Invalid candidates are
// transient: the error is recorded and scanning continues. The first valid
// candidate stops the loop and releases the device before its lookup starts,
// so one session acts on at most one code.
func (c *Controller) run(sess *scanSession, events <-chan scan.Event) {
	defer c.finish(sess)

	for ev := range events {
		switch ev.Kind {
		case scan.Noise:
			c.mu.Lock()
			c.noiseFrames++
			c.mu.Unlock()
		case scan.Candidate:
			c.mu.Lock()
			c.candidates++
			c.mu.Unlock()

			if c.acceptCandidate(sess, ev.Text) {
				return
			}
		}
	}
}

// acceptCandidate validates a decoded payload. A malformed read is transient:
// the error is recorded and scanning continues. A valid code ends the session
// first (loop stopped, device released) and only then runs the lookup.
func (c *Controller) acceptCandidate(sess *scanSession, text string) bool {
	code, err := jancode.Validate(text)
	if err != nil {
		c.setLastError(err.Error())
		return false
	}

	sess.close()
	if _, err := c.SubmitCode(context.Background(), code); err != nil {
		log.Printf("[session] scan lookup failed for %s: %v", code, err)
	}
	return true
}

// finish releases the session's resources (idempotent with any earlier
// teardown) and clears the active slot if this session still owns it.
func (c *Controller) finish(sess *scanSession) {
	sess.close()
	c.mu.Lock()
	if c.active == sess {
		c.active = nil
	}
	c.mu.Unlock()
}

// CloseScan tears down the active session, if any. Idempotent; safe while a
// candidate is pending.
func (c *Controller) CloseScan() {
	c.closeActive()
}

func (c *Controller) closeActive() {
	c.mu.Lock()
	sess := c.active
	c.active = nil
	c.mu.Unlock()
	if sess != nil {
		sess.close()
	}
}

// SubmitCode validates a code, resolves it to a product and adds the product
// to the cart. Both the scan path and manual entry land here.
func (c *Controller) SubmitCode(ctx context.Context, raw string) (domain.Product, error) {
	code, err := jancode.Validate(raw)
	if err != nil {
		c.setLastError(err.Error())
		return domain.Product{}, err
	}

	product, err := c.backend.Lookup(ctx, code)
	if err != nil {
		c.setLastError(lookupMessage(err))
		return domain.Product{}, err
	}

	c.cart.Add(product)
	c.mu.Lock()
	c.lastProduct = &product
	c.lastError = ""
	c.mu.Unlock()
	return product, nil
}

// TypeEntry feeds raw manual input through sanitation; a complete 13-digit
// value auto-submits after the debounce. Returns the sanitized value.
func (c *Controller) TypeEntry(raw string) string {
	return c.entry.Update(raw)
}

// Checkout submits the cart. On success the cart is cleared and the reply is
// projected into the last-purchase summary; on any failure the cart is left
// exactly as it was so a retry neither duplicates nor loses items.
func (c *Controller) Checkout(ctx context.Context, operatorCode string) (domain.PurchaseResponse, error) {
	items := c.cart.Items()
	if len(items) == 0 {
		return domain.PurchaseResponse{}, ErrEmptyCart
	}

	resp, err := c.backend.Purchase(ctx, items, domain.OperatorCodeOrDefault(operatorCode))
	if err != nil {
		return domain.PurchaseResponse{}, err
	}

	c.cart.Clear()
	c.entry.Reset()
	c.mu.Lock()
	c.lastPurchase = &domain.PurchaseSummary{
		TotalAmount:   resp.TotalAmount,
		TransactionID: resp.TransactionID,
	}
	c.mu.Unlock()
	return resp, nil
}

// LastPurchase returns the transient summary of the most recent successful
// checkout, or nil.
func (c *Controller) LastPurchase() *domain.PurchaseSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPurchase
}

// Status snapshots the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Active:      c.active != nil,
		Permission:  c.permission,
		LastError:   c.lastError,
		NoiseFrames: c.noiseFrames,
		Candidates:  c.candidates,
		LastProduct: c.lastProduct,
	}
	if c.active != nil {
		st.SessionID = c.active.id
	}
	return st
}

func (c *Controller) setLastError(msg string) {
	c.mu.Lock()
	c.lastError = msg
	c.mu.Unlock()
}

// lookupMessage keeps operator-facing text stable for the common failures.
func lookupMessage(err error) string {
	var netErr *backend.NetworkError
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return "product not registered in master"
	case errors.As(err, &netErr):
		if netErr.Timeout {
			return "backend request timed out"
		}
		return "failed to reach the backend"
	default:
		return err.Error()
	}
}
