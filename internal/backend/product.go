package backend

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"janpos/terminal/internal/domain"
)

// lv1Product is the Lv1 wire shape. is_local arrives as whatever the backend
// of the day emits (bool, 0/1, string), so it is coerced explicitly.
type lv1Product struct {
	PRDID    int64           `json:"PRD_ID"`
	Code     string          `json:"CODE"`
	Name     string          `json:"NAME"`
	Price    int64           `json:"PRICE"`
	TaxRate  *float64        `json:"tax_rate"`
	Category string          `json:"category"`
	IsLocal  json.RawMessage `json:"is_local"`
}

// legacyProduct is the old lowercase wire shape.
type legacyProduct struct {
	ID       int64           `json:"id"`
	Code     string          `json:"product_code"`
	Name     string          `json:"product_name"`
	Price    int64           `json:"price"`
	TaxRate  *float64        `json:"tax_rate"`
	Category string          `json:"category"`
	IsLocal  json.RawMessage `json:"is_local"`
}

// Lookup resolves a validated JAN code to a canonical Product. The Lv1
// endpoint is tried first; a 404 there triggers exactly one retry against the
// legacy endpoint. Both missing means ErrNotFound. Exactly one canonical,
// fully mirrored Product is ever handed to callers.
func (c *Client) Lookup(ctx context.Context, code string) (domain.Product, error) {
	if cached, ok := c.cacheGet(ctx, code); ok {
		return cached, nil
	}

	resp, err := c.get(ctx, productsV1Path+"/"+code)
	if err != nil {
		return domain.Product{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var wire lv1Product
		if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
			return domain.Product{}, &ServerError{Status: resp.StatusCode, Detail: "malformed product payload"}
		}
		product := wire.canonical()
		c.cacheSet(ctx, code, product)
		return product, nil
	case resp.StatusCode == http.StatusNotFound:
		return c.lookupLegacy(ctx, code)
	default:
		return domain.Product{}, serverErrorFrom(resp)
	}
}

func (c *Client) lookupLegacy(ctx context.Context, code string) (domain.Product, error) {
	resp, err := c.get(ctx, productsLegacyPath+"/"+code)
	if err != nil {
		return domain.Product{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var wire legacyProduct
		if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
			return domain.Product{}, &ServerError{Status: resp.StatusCode, Detail: "malformed product payload"}
		}
		product := wire.canonical(code)
		c.cacheSet(ctx, code, product)
		return product, nil
	case resp.StatusCode == http.StatusNotFound:
		return domain.Product{}, ErrNotFound
	default:
		// The legacy endpoint failing in any other way still means the
		// product could not be found anywhere.
		return domain.Product{}, ErrNotFound
	}
}

func (w lv1Product) canonical() domain.Product {
	p := domain.NewProduct(w.PRDID, w.Code, w.Name, w.Price)
	p.TaxRate = w.TaxRate
	p.Category = w.Category
	p.IsLocal = coerceBool(w.IsLocal)
	return p
}

// canonical synthesizes the Lv1 key set from legacy fields, defaulting the
// code to the one that was looked up when the record omits it.
func (w legacyProduct) canonical(lookupCode string) domain.Product {
	code := w.Code
	if code == "" {
		code = lookupCode
	}
	p := domain.NewProduct(w.ID, code, w.Name, w.Price)
	p.TaxRate = w.TaxRate
	p.Category = w.Category
	p.IsLocal = coerceBool(w.IsLocal)
	return p
}

// coerceBool applies JS-truthiness to the locality flag: false, 0, "", "0",
// "false" and null are all false.
func coerceBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0" && t != "false"
	default:
		return false
	}
}

func (c *Client) cacheGet(ctx context.Context, code string) (domain.Product, bool) {
	product, ok, err := c.cache.Get(ctx, code)
	if err != nil {
		log.Printf("[backend] product cache get failed for %s: %v", code, err)
		return domain.Product{}, false
	}
	if !ok || product == nil {
		return domain.Product{}, false
	}
	return *product, true
}

func (c *Client) cacheSet(ctx context.Context, code string, product domain.Product) {
	if err := c.cache.Set(ctx, code, &product, c.ttl); err != nil {
		log.Printf("[backend] product cache set failed for %s: %v", code, err)
	}
}
