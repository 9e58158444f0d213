// Package httpapi is the terminal's local HTTP surface: the thin UI in front
// of the operator drives scanning, the cart and checkout through it. It is a
// local, single-operator surface and carries no authentication.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"janpos/terminal/internal/backend"
	"janpos/terminal/internal/capture"
	"janpos/terminal/internal/cart"
	"janpos/terminal/internal/jancode"
	"janpos/terminal/internal/session"
)

type API struct {
	controller *session.Controller
	cart       *cart.Cart
	backend    *backend.Client
}

func New(controller *session.Controller, crt *cart.Cart, bc *backend.Client) *API {
	return &API{controller: controller, cart: crt, backend: bc}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/scan/open", a.handleScanOpen)
	mux.HandleFunc("/api/v1/scan/close", a.handleScanClose)
	mux.HandleFunc("/api/v1/scan/status", a.handleScanStatus)
	mux.HandleFunc("/api/v1/entry", a.handleEntry)

	mux.HandleFunc("/api/v1/cart", a.handleCart)
	mux.HandleFunc("/api/v1/cart/items", a.handleCartItems)
	mux.HandleFunc("/api/v1/cart/items/", a.handleCartItemActions)

	mux.HandleFunc("/api/v1/checkout", a.handleCheckout)
	mux.HandleFunc("/api/v1/purchase-history", a.handleHistory)

	return mux
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleScanOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	id, err := a.controller.OpenScan(r.Context())
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id})
}

func (a *API) handleScanClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	a.controller.CloseScan()
	writeJSON(w, http.StatusOK, map[string]any{"closed": true})
}

func (a *API) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, a.controller.Status())
}

// handleEntry is the manual code path. A submit:true body validates and looks
// the code up synchronously (the form-submit path); otherwise the body is
// treated as in-progress typing and a complete value auto-submits after the
// entry debounce.
func (a *API) handleEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		Code   string `json:"code"`
		Submit bool   `json:"submit"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.Submit {
		product, err := a.controller.SubmitCode(r.Context(), jancode.Sanitize(req.Code))
		if err != nil {
			writeTaxonomyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
		return
	}

	value := a.controller.TypeEntry(req.Code)
	writeJSON(w, http.StatusOK, map[string]any{
		"value":    value,
		"length":   len(value),
		"complete": len(value) == jancode.Length,
	})
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, a.cartPayload())
}

func (a *API) handleCartItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	product, err := a.controller.SubmitCode(r.Context(), jancode.Sanitize(req.Code))
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"product": product,
		"cart":    a.cartPayload(),
	})
}

func (a *API) handleCartItemActions(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/api/v1/cart/items/")
	if code == "" || strings.Contains(code, "/") {
		writeError(w, http.StatusNotFound, errors.New("unknown cart item"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req struct {
			Quantity int `json:"quantity"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		a.cart.SetQuantity(code, req.Quantity)
		writeJSON(w, http.StatusOK, a.cartPayload())
	case http.MethodDelete:
		a.cart.Remove(code)
		writeJSON(w, http.StatusOK, a.cartPayload())
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		OperatorCode string `json:"operator_code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.controller.Checkout(r.Context(), req.OperatorCode)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        resp.Success,
		"total_amount":   resp.TotalAmount,
		"transaction_id": resp.TransactionID,
	})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 5, 50)
	items, err := a.backend.History(r.Context(), limit)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

func (a *API) cartPayload() map[string]any {
	payload := map[string]any{
		"items":    a.cart.Items(),
		"quantity": a.cart.Quantity(),
		"subtotal": a.cart.Subtotal(),
		"total":    a.cart.Total(),
	}
	if last := a.controller.LastPurchase(); last != nil {
		payload["last_purchase"] = last
	}
	return payload
}

// writeTaxonomyError maps the domain error taxonomy to statuses the UI keys
// its remediation hints off. Operator-facing detail is preserved; only truly
// internal failures are masked.
func writeTaxonomyError(w http.ResponseWriter, err error) {
	var (
		precondErr *capture.PreconditionError
		permErr    *capture.PermissionError
		devErr     *capture.DeviceError
		formatErr  *jancode.InvalidFormatError
		serverErr  *backend.ServerError
		netErr     *backend.NetworkError
	)

	switch {
	case errors.As(err, &precondErr):
		writeJSON(w, http.StatusPreconditionFailed, map[string]any{
			"error":  err.Error(),
			"reason": precondErr.Reason,
		})
	case errors.As(err, &permErr):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":  err.Error(),
			"reason": "permission-denied",
		})
	case errors.As(err, &devErr):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": err.Error(),
			"kind":  devErr.Kind,
		})
	case errors.As(err, &formatErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  err.Error(),
			"text":   formatErr.Text,
			"length": formatErr.Length,
		})
	case errors.Is(err, backend.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, session.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err)
	case errors.As(err, &serverErr):
		detail := serverErr.Detail
		if detail == "" {
			detail = "the purchase could not be processed"
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": detail})
	case errors.As(err, &netErr):
		status := http.StatusBadGateway
		if netErr.Timeout {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, map[string]any{"error": "failed to reach the backend"})
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// Internal 500s get a generic message so implementation details never
	// leak; everything else is operator-facing and keeps its text.
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
