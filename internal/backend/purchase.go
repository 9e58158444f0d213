package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"janpos/terminal/internal/domain"
)

// purchaseReply accepts either reply generation: the Lv1 uppercase keys or
// the legacy lowercase ones.
type purchaseReply struct {
	Success *bool `json:"success"`

	TotalAmt *int64  `json:"TOTAL_AMT"`
	TrdID    *string `json:"TRD_ID"`

	TotalAmount *int64  `json:"total_amount"`
	PurchaseID  *string `json:"purchase_id"`
}

func (r purchaseReply) normalized() domain.PurchaseResponse {
	out := domain.PurchaseResponse{Success: true}
	if r.Success != nil {
		out.Success = *r.Success
	}
	switch {
	case r.TotalAmt != nil:
		out.TotalAmount = *r.TotalAmt
	case r.TotalAmount != nil:
		out.TotalAmount = *r.TotalAmount
	}
	switch {
	case r.TrdID != nil:
		out.TransactionID = *r.TrdID
	case r.PurchaseID != nil:
		out.TransactionID = *r.PurchaseID
	}
	return out
}

// Purchase submits the cart. The Lv1 endpoint gets the full payload with
// operator, store and terminal metadata; a 404 there falls back to the legacy
// endpoint with the reduced code+quantity payload. operatorCode is used as
// given; callers apply domain.OperatorCodeOrDefault first.
func (c *Client) Purchase(ctx context.Context, items []domain.CartItem, operatorCode string) (domain.PurchaseResponse, error) {
	req := domain.PurchaseRequest{
		OperatorCode: operatorCode,
		StoreCode:    domain.StoreCode,
		POSNumber:    domain.POSNumber,
		Products:     make([]domain.PurchaseLine, 0, len(items)),
	}
	for _, item := range items {
		req.Products = append(req.Products, domain.PurchaseLine{
			PRDID:    item.PRDID,
			Code:     item.Code,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}

	resp, err := c.post(ctx, purchaseV1Path, req)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return decodePurchaseReply(resp)
	case resp.StatusCode == http.StatusNotFound:
		// Primary transaction endpoint gone or not deployed; use the old one.
		return c.purchaseLegacy(ctx, items)
	default:
		return domain.PurchaseResponse{}, serverErrorFrom(resp)
	}
}

func (c *Client) purchaseLegacy(ctx context.Context, items []domain.CartItem) (domain.PurchaseResponse, error) {
	req := domain.LegacyPurchaseRequest{Items: make([]domain.LegacyPurchaseLine, 0, len(items))}
	for _, item := range items {
		req.Items = append(req.Items, domain.LegacyPurchaseLine{
			ProductCode: item.Code,
			Quantity:    item.Quantity,
		})
	}

	resp, err := c.post(ctx, purchaseLegacyPath, req)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.PurchaseResponse{}, serverErrorFrom(resp)
	}
	return decodePurchaseReply(resp)
}

func decodePurchaseReply(resp *http.Response) (domain.PurchaseResponse, error) {
	var reply purchaseReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return domain.PurchaseResponse{}, &ServerError{Status: resp.StatusCode, Detail: "malformed purchase reply"}
	}
	return reply.normalized(), nil
}

// History fetches recent purchases. Read-only passthrough for the terminal
// surface; it takes no part in cart or checkout logic.
func (c *Client) History(ctx context.Context, limit int) ([]domain.PurchaseHistoryItem, error) {
	if limit < 1 {
		limit = 5
	}
	resp, err := c.get(ctx, historyPath+"?limit="+strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, serverErrorFrom(resp)
	}
	var reply struct {
		Data []domain.PurchaseHistoryItem `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, &ServerError{Status: resp.StatusCode, Detail: "malformed history reply"}
	}
	return reply.Data, nil
}
