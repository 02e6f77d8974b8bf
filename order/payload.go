package order

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gramkart/commerce-core/api"
	"github.com/gramkart/commerce-core/cart"
	"github.com/gramkart/commerce-core/checkout"
	"github.com/gramkart/commerce-core/reward"
)

// agencyMethodTag is the fixed payment method recorded on agency package
// payment requests.
const agencyMethodTag = "agency_package"

// ecouponRequest shapes an e-coupon payload. The proof file resolves as the
// line's own attachment, falling back to the checkout payment proof.
func (p *Pipeline) ecouponRequest(li cart.LineItem, rec checkout.Record, method PaymentMethod) api.EcouponOrderRequest {
	meta, _ := li.Meta.(cart.ECouponMeta)

	file := p.carts.File(li.Key)
	if file == nil {
		file = p.checkouts.PaymentFile()
	}

	return api.EcouponOrderRequest{
		CouponID:     li.ID,
		Quantity:     li.Qty,
		Denomination: meta.Denomination,
		Season:       meta.Season,
		UTR:          rec.UTR,
		Notes:        taggedNotes(rec.Notes, method),
		File:         file,
	}
}

func (p *Pipeline) promoRequest(li cart.LineItem) api.PromoPurchaseRequest {
	meta, _ := li.Meta.(cart.PromoMeta)

	return api.PromoPurchaseRequest{
		PackageID:              li.ID,
		Kind:                   meta.Kind,
		Quantity:               li.Qty,
		PackageNumber:          meta.PackageNumber,
		Boxes:                  meta.Boxes,
		SelectedProductID:      meta.SelectedProductID,
		SelectedPromoProductID: meta.SelectedPromoProductID,
		Prime150Choice:         meta.Prime150Choice,
		Prime750Choice:         meta.Prime750Choice,
		ShippingAddress:        meta.ShippingAddress,
		File:                   p.carts.File(li.Key),
	}
}

// agencyRequest shapes an agency payment: the full line amount under the
// fixed method tag, with the meta reference or a generated one.
func (p *Pipeline) agencyRequest(li cart.LineItem) (string, api.AgencyPaymentRequest) {
	meta, _ := li.Meta.(cart.AgencyMeta)

	ref := meta.Reference
	if ref == "" {
		ref = uuid.New().String()
	}
	id := meta.PlanID
	if id == "" {
		id = li.ID
	}

	return id, api.AgencyPaymentRequest{
		Amount:    li.Subtotal(),
		Method:    agencyMethodTag,
		Reference: ref,
	}
}

func (p *Pipeline) productRequest(li cart.LineItem, rec checkout.Record, alloc reward.Allocation) api.ProductPurchaseRequest {
	meta, _ := li.Meta.(cart.ProductMeta)

	return api.ProductPurchaseRequest{
		ProductID:       li.ID,
		Quantity:        li.Qty,
		UnitPrice:       li.UnitPrice,
		RewardPoints:    alloc.ShareFor(li.Key),
		ShippingAddress: meta.ShippingAddress,
		Notes:           rec.Notes,
	}
}

// taggedNotes prefixes the buyer notes with the payment method tag.
func taggedNotes(notes string, method PaymentMethod) string {
	return strings.TrimSpace(fmt.Sprintf("[payment:%s] %s", method, notes))
}
