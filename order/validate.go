package order

import (
	"strings"

	"github.com/gramkart/commerce-core/cart"
	"github.com/gramkart/commerce-core/checkout"
)

// PaymentMethod tags how the buyer pays for this submission.
type PaymentMethod string

const (
	MethodManual PaymentMethod = "manual"
	MethodOnline PaymentMethod = "online"
)

// ValidationError reports every pre-submission gate violation at once. It is
// surfaced before any network call is issued.
type ValidationError struct {
	// MissingAddressLines names PRODUCT lines without a shipping address.
	MissingAddressLines []string
	// MissingContactFields lists the empty contact fields required by the
	// PRODUCT lines present.
	MissingContactFields []string
	// MissingUTR is set when a manual-payment e-coupon order has no
	// transaction reference.
	MissingUTR bool
	// MissingProofLines names manual-payment ECOUPON lines with neither a
	// line attachment nor a checkout payment proof.
	MissingProofLines []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.MissingAddressLines) > 0 {
		parts = append(parts, "missing shipping address: "+strings.Join(e.MissingAddressLines, ", "))
	}
	if len(e.MissingContactFields) > 0 {
		parts = append(parts, "missing contact "+strings.Join(e.MissingContactFields, ", "))
	}
	if e.MissingUTR {
		parts = append(parts, "missing payment UTR")
	}
	if len(e.MissingProofLines) > 0 {
		parts = append(parts, "missing payment proof: "+strings.Join(e.MissingProofLines, ", "))
	}
	return "order validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) empty() bool {
	return len(e.MissingAddressLines) == 0 &&
		len(e.MissingContactFields) == 0 &&
		!e.MissingUTR &&
		len(e.MissingProofLines) == 0
}

// validate runs the fail-fast gates over the cart and checkout state.
// It returns nil when every gate passes.
func (p *Pipeline) validate(items []cart.LineItem, rec checkout.Record, method PaymentMethod) *ValidationError {
	verr := &ValidationError{}

	hasProduct := false
	for _, li := range items {
		switch li.Type {
		case cart.TypeProduct:
			hasProduct = true
			meta, _ := li.Meta.(cart.ProductMeta)
			if meta.ShippingAddress.IsZero() {
				verr.MissingAddressLines = append(verr.MissingAddressLines, lineName(li))
			}
		case cart.TypeECoupon:
			if method != MethodManual {
				continue
			}
			if rec.UTR == "" {
				verr.MissingUTR = true
			}
			if p.carts.File(li.Key) == nil && p.checkouts.PaymentFile() == nil {
				verr.MissingProofLines = append(verr.MissingProofLines, lineName(li))
			}
		}
	}

	if hasProduct {
		if rec.Contact.Name == "" {
			verr.MissingContactFields = append(verr.MissingContactFields, "name")
		}
		if rec.Contact.Phone == "" {
			verr.MissingContactFields = append(verr.MissingContactFields, "phone")
		}
	}

	if verr.empty() {
		return nil
	}
	return verr
}

func lineName(li cart.LineItem) string {
	if li.Name != "" {
		return li.Name
	}
	return li.Key
}
