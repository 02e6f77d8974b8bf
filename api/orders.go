package api

import (
	"context"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/gramkart/commerce-core/cart"
	"github.com/gramkart/commerce-core/postal"
)

// EcouponOrderRequest creates an e-coupon order. The proof attachment, when
// present, rides along as a multipart file part.
type EcouponOrderRequest struct {
	CouponID     string
	Quantity     int
	Denomination decimal.Decimal
	Season       string
	UTR          string
	Notes        string
	File         *cart.Attachment
}

func (r EcouponOrderRequest) encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("coupon_id")
	e.Str(r.CouponID)
	e.FieldStart("quantity")
	e.Int(r.Quantity)
	if !r.Denomination.IsZero() {
		e.FieldStart("denomination")
		e.Str(r.Denomination.String())
	}
	if r.Season != "" {
		e.FieldStart("season")
		e.Str(r.Season)
	}
	e.FieldStart("utr")
	e.Str(r.UTR)
	e.FieldStart("notes")
	e.Str(r.Notes)
	e.ObjEnd()
}

// CreateEcouponOrder submits an e-coupon order.
func (c *Client) CreateEcouponOrder(ctx context.Context, req EcouponOrderRequest) error {
	return c.postJSON(ctx, "/orders/ecoupon", req, req.File)
}

// PromoPurchaseRequest creates a promo package purchase. The payload shape
// depends on Kind: MONTHLY carries package number and boxes, PRIME carries
// the product selections and shipping address, anything else is a minimal
// quantity payload.
type PromoPurchaseRequest struct {
	PackageID              string
	Kind                   cart.PromoKind
	Quantity               int
	PackageNumber          int
	Boxes                  []string
	SelectedProductID      string
	SelectedPromoProductID string
	Prime150Choice         string
	Prime750Choice         string
	ShippingAddress        postal.Address
	File                   *cart.Attachment
}

func (r PromoPurchaseRequest) encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("package_id")
	e.Str(r.PackageID)
	e.FieldStart("quantity")
	e.Int(r.Quantity)

	switch r.Kind {
	case cart.PromoMonthly:
		e.FieldStart("package_number")
		e.Int(r.PackageNumber)
		e.FieldStart("boxes")
		e.ArrStart()
		for _, b := range r.Boxes {
			e.Str(b)
		}
		e.ArrEnd()
	case cart.PromoPrime:
		e.FieldStart("selected_product_id")
		e.Str(r.SelectedProductID)
		e.FieldStart("selected_promo_product_id")
		e.Str(r.SelectedPromoProductID)
		e.FieldStart("prime150_choice")
		e.Str(r.Prime150Choice)
		e.FieldStart("prime750_choice")
		e.Str(r.Prime750Choice)
		e.FieldStart("shipping_address")
		encodeAddress(e, r.ShippingAddress)
	}
	e.ObjEnd()
}

// CreatePromoPurchase submits a promo package purchase.
func (c *Client) CreatePromoPurchase(ctx context.Context, req PromoPurchaseRequest) error {
	return c.postJSON(ctx, "/orders/promo", req, req.File)
}

// ProductPurchaseRequest creates a product purchase request, optionally
// settling part of the price with redeemed reward points.
type ProductPurchaseRequest struct {
	ProductID       string
	Quantity        int
	UnitPrice       decimal.Decimal
	RewardPoints    decimal.Decimal
	ShippingAddress postal.Address
	Notes           string
}

func (r ProductPurchaseRequest) encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("product_id")
	e.Str(r.ProductID)
	e.FieldStart("quantity")
	e.Int(r.Quantity)
	e.FieldStart("unit_price")
	e.Str(r.UnitPrice.String())
	e.FieldStart("reward_points")
	e.Str(r.RewardPoints.String())
	e.FieldStart("shipping_address")
	encodeAddress(e, r.ShippingAddress)
	if r.Notes != "" {
		e.FieldStart("notes")
		e.Str(r.Notes)
	}
	e.ObjEnd()
}

// CreateProductPurchaseRequest submits a product purchase request.
func (c *Client) CreateProductPurchaseRequest(ctx context.Context, req ProductPurchaseRequest) error {
	return c.postJSON(ctx, "/orders/product-request", req, nil)
}

// AgencyPaymentRequest records a payment against an agency package.
type AgencyPaymentRequest struct {
	Amount    decimal.Decimal
	Method    string
	Reference string
}

func (r AgencyPaymentRequest) encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("amount")
	e.Str(r.Amount.String())
	e.FieldStart("method")
	e.Str(r.Method)
	e.FieldStart("reference")
	e.Str(r.Reference)
	e.ObjEnd()
}

// CreateAgencyPaymentRequest submits a payment request for the agency
// package identified by id.
func (c *Client) CreateAgencyPaymentRequest(ctx context.Context, id string, req AgencyPaymentRequest) error {
	return c.postJSON(ctx, "/agency/packages/"+id+"/payment", req, nil)
}

func encodeAddress(e *jx.Encoder, a postal.Address) {
	e.ObjStart()
	writeField := func(name, v string) {
		if v != "" {
			e.FieldStart(name)
			e.Str(v)
		}
	}
	writeField("line1", a.Line1)
	writeField("village", a.Village)
	writeField("gram_panchayat", a.GramPanchayat)
	writeField("city", a.City)
	writeField("district", a.District)
	writeField("state", a.State)
	writeField("pincode", a.Pincode)
	writeField("country", a.Country)
	e.ObjEnd()
}
