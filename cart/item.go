// Package cart implements the persistent, namespace-scoped shopping cart:
// deterministic line keying, merge-on-add semantics, and a synchronous
// subscriber model over an injectable persistence backend.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/gramkart/commerce-core/postal"
)

// ItemType discriminates the heterogeneous cart line variants.
type ItemType string

const (
	TypeECoupon       ItemType = "ECOUPON"
	TypePromoPackage  ItemType = "PROMO_PACKAGE"
	TypeProduct       ItemType = "PRODUCT"
	TypeAgencyPackage ItemType = "AGENCY_PACKAGE"
)

// PromoKind discriminates promo package payload shapes.
type PromoKind string

const (
	PromoMonthly PromoKind = "MONTHLY"
	PromoPrime   PromoKind = "PRIME"
)

// Meta is the variant-specific attribute bag carried by a line item. Each
// item type has exactly one meta shape, giving exhaustive-match safety where
// the submission pipeline shapes payloads.
type Meta interface {
	// ItemType returns the line type this meta shape belongs to.
	ItemType() ItemType
}

// ECouponMeta describes an e-coupon line: the face value and the season the
// coupon is issued for.
type ECouponMeta struct {
	Denomination decimal.Decimal `json:"denomination,omitzero"`
	Season       string          `json:"season,omitempty"`
}

func (ECouponMeta) ItemType() ItemType { return TypeECoupon }

// PromoMeta describes a promo package line. Kind selects the payload shape:
// MONTHLY carries a package number and box selection, PRIME carries product
// choices and a shipping address.
type PromoMeta struct {
	Kind                   PromoKind      `json:"kind,omitempty"`
	PackageNumber          int            `json:"package_number,omitempty"`
	Boxes                  []string       `json:"boxes,omitempty"`
	SelectedProductID      string         `json:"selected_product_id,omitempty"`
	SelectedPromoProductID string         `json:"selected_promo_product_id,omitempty"`
	Prime150Choice         string         `json:"prime150_choice,omitempty"`
	Prime750Choice         string         `json:"prime750_choice,omitempty"`
	ShippingAddress        postal.Address `json:"shipping_address,omitzero"`
}

func (PromoMeta) ItemType() ItemType { return TypePromoPackage }

// ProductMeta describes a catalog product line: where to ship it and what
// share of its price may be settled with reward points.
type ProductMeta struct {
	ShippingAddress postal.Address  `json:"shipping_address,omitzero"`
	MaxRewardPct    decimal.Decimal `json:"max_reward_pct,omitzero"`
}

func (ProductMeta) ItemType() ItemType { return TypeProduct }

// AgencyMeta describes an agency package payment line.
type AgencyMeta struct {
	PlanID    string `json:"plan_id,omitempty"`
	Reference string `json:"reference,omitempty"`
}

func (AgencyMeta) ItemType() ItemType { return TypeAgencyPackage }

// Attachment is an in-memory file attached to a line or to the checkout
// record. Attachments are ephemeral: they are never serialized and survive
// only for the current session.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// LineItem is one mergeable cart entry. Two additions with the same type, id,
// and canonicalized meta always collapse into one line with summed quantity.
type LineItem struct {
	Key       string          `json:"key"`
	Type      ItemType        `json:"type"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
	Meta      Meta            `json:"-"`
}

// Subtotal returns unit price times quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Qty)))
}
