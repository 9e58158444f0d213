package domain

import "strings"

// Fixed POS identity. The store and terminal codes are constants of the
// deployment and never come from operator input; only the operator code is
// settable, and a blank one is replaced by DefaultOperatorCode.
const (
	DefaultOperatorCode = "9999999999"
	StoreCode           = "30"
	POSNumber           = "90"
)

// Product is the canonical in-memory product record. The backend has two wire
// generations: the Lv1 shape with uppercase keys (PRD_ID, CODE, ...) and the
// legacy lowercase shape (id, product_code, ...). A canonical Product always
// carries both key sets populated with identical values so readers of either
// generation see correct data.
type Product struct {
	PRDID int64  `json:"PRD_ID"`
	Code  string `json:"CODE"`
	Name  string `json:"NAME"`
	Price int64  `json:"PRICE"`

	ID          int64  `json:"id"`
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	LegacyPrice int64  `json:"price"`

	TaxRate  *float64 `json:"tax_rate,omitempty"`
	Category string   `json:"category,omitempty"`
	IsLocal  bool     `json:"is_local"`
}

// NewProduct builds a canonical Product with both key sets mirrored.
func NewProduct(id int64, code string, name string, price int64) Product {
	return Product{
		PRDID:       id,
		Code:        code,
		Name:        name,
		Price:       price,
		ID:          id,
		ProductCode: code,
		ProductName: name,
		LegacyPrice: price,
	}
}

// CartItem is a product plus a quantity of at least 1. Cart identity is the
// product code; a cart never holds two items with the same code.
type CartItem struct {
	Product
	Quantity int `json:"quantity"`
}

// PurchaseLine is one line of a Lv1 purchase request.
type PurchaseLine struct {
	PRDID    int64  `json:"PRD_ID"`
	Code     string `json:"CODE"`
	Name     string `json:"NAME"`
	Price    int64  `json:"PRICE"`
	Quantity int    `json:"quantity"`
}

// PurchaseRequest is the Lv1 transaction payload.
type PurchaseRequest struct {
	OperatorCode string         `json:"EMP_CD"`
	StoreCode    string         `json:"STORE_CD"`
	POSNumber    string         `json:"POS_NO"`
	Products     []PurchaseLine `json:"products"`
}

// LegacyPurchaseLine is one line of the reduced legacy transaction payload,
// which carries no operator, store or terminal metadata.
type LegacyPurchaseLine struct {
	ProductCode string `json:"product_code"`
	Quantity    int    `json:"quantity"`
}

// LegacyPurchaseRequest is the legacy transaction payload.
type LegacyPurchaseRequest struct {
	Items []LegacyPurchaseLine `json:"items"`
}

// PurchaseResponse is the outcome of a completed checkout call, normalized
// from either reply generation.
type PurchaseResponse struct {
	Success       bool   `json:"success"`
	TotalAmount   int64  `json:"total_amount"`
	TransactionID string `json:"transaction_id"`
}

// PurchaseSummary is the transient last-purchase projection shown to the
// operator after a successful checkout. It is replaced on the next checkout
// and never persisted.
type PurchaseSummary struct {
	TotalAmount   int64  `json:"total_amount"`
	TransactionID string `json:"transaction_id"`
}

// PurchaseHistoryLine is one line of a past purchase as reported by the
// backend history endpoint.
type PurchaseHistoryLine struct {
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	Price       int64  `json:"price"`
	Quantity    int    `json:"quantity"`
	TotalPrice  int64  `json:"total_price"`
}

// PurchaseHistoryItem is a past purchase as reported by the backend.
type PurchaseHistoryItem struct {
	ID           int64                 `json:"id"`
	PurchaseDate string                `json:"purchase_date"`
	TotalAmount  int64                 `json:"total_amount"`
	Items        []PurchaseHistoryLine `json:"items"`
}

// OperatorCodeOrDefault trims the operator input and substitutes the sentinel
// code when the result is blank.
func OperatorCodeOrDefault(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return DefaultOperatorCode
	}
	return trimmed
}
