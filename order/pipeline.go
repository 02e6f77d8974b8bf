// Package order turns a validated cart and checkout state into a sequence of
// collaborator order-creation calls, one per line, isolating failures per
// line and reconciling the cart afterwards.
//
// Submission is at-most-once per line with no automatic retry: succeeded
// lines are removed from the cart, failed lines stay behind, and re-running
// the pipeline is the only retry mechanism.
package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gramkart/commerce-core/api"
	"github.com/gramkart/commerce-core/cart"
	"github.com/gramkart/commerce-core/checkout"
	"github.com/gramkart/commerce-core/reward"
)

// ErrEmptyCart is returned when Submit is called with nothing to submit.
var ErrEmptyCart = errors.New("cart is empty")

// Backend is the slice of the collaborator API the pipeline consumes.
type Backend interface {
	CreateEcouponOrder(ctx context.Context, req api.EcouponOrderRequest) error
	CreatePromoPurchase(ctx context.Context, req api.PromoPurchaseRequest) error
	CreateProductPurchaseRequest(ctx context.Context, req api.ProductPurchaseRequest) error
	CreateAgencyPaymentRequest(ctx context.Context, id string, req api.AgencyPaymentRequest) error
}

// RewardSource provides the available reward point balance.
type RewardSource interface {
	RewardPointsSummary(ctx context.Context) (decimal.Decimal, error)
}

// Journal records attempted submissions for audit. Append failures never
// affect the submission outcome.
type Journal interface {
	AppendSubmission(ctx context.Context, batchID uuid.UUID, lineKey, lineType string, amount decimal.Decimal, ok bool, message string) error
}

// SubmitParams holds the caller-supplied inputs for one pipeline run.
type SubmitParams struct {
	PaymentMethod PaymentMethod
	// RequestedRedeem is the reward point amount the buyer asked to redeem
	// across the PRODUCT lines. It is clamped by the allocator.
	RequestedRedeem decimal.Decimal
}

// Result is the per-line outcome. Failed lines keep their message for
// per-line display; results are never destructively aggregated.
type Result struct {
	Key     string
	Name    string
	Type    cart.ItemType
	OK      bool
	Message string
}

// Outcome is the aggregated result of one pipeline run.
type Outcome struct {
	BatchID   uuid.UUID
	Results   []Result
	Succeeded int
	Failed    int
	// Complete is set only when every line succeeded; the checkout record
	// has then been reset and the caller may navigate to the success view.
	Complete bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithJournal attaches a submission journal.
func WithJournal(j Journal) Option {
	return func(p *Pipeline) { p.journal = j }
}

// Pipeline orchestrates cart, checkout, reward allocation, and the
// collaborator API for one role namespace.
type Pipeline struct {
	carts     *cart.Store
	checkouts *checkout.Store
	backend   Backend
	rewards   RewardSource
	journal   Journal

	tracer    trace.Tracer
	submitted metric.Int64Counter
}

// NewPipeline creates a Pipeline over the given stores and collaborators.
func NewPipeline(carts *cart.Store, checkouts *checkout.Store, backend Backend, rewards RewardSource, opts ...Option) *Pipeline {
	p := &Pipeline{
		carts:     carts,
		checkouts: checkouts,
		backend:   backend,
		rewards:   rewards,
		tracer:    otel.Tracer("commerce-core/order"),
	}
	if counter, err := otel.Meter("commerce-core/order").Int64Counter("order_lines_submitted"); err == nil {
		p.submitted = counter
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit runs the full pipeline: validation gates, type-grouped sequential
// submission, and cart/checkout reconciliation.
//
// Lines are submitted one at a time, awaited individually; a failure is
// recorded and the run continues with the next line. Submission order is
// ECOUPON, PROMO_PACKAGE, AGENCY_PACKAGE, then PRODUCT, preserving cart
// order within each group. PRODUCT lines consume the reward allocation in
// that same order.
func (p *Pipeline) Submit(ctx context.Context, params SubmitParams) (*Outcome, error) {
	lg := zctx.From(ctx)

	items := p.carts.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	rec := p.checkouts.Record()

	if verr := p.validate(items, rec, params.PaymentMethod); verr != nil {
		return nil, verr
	}

	ctx, span := p.tracer.Start(ctx, "order.Submit",
		trace.WithAttributes(attribute.Int("order.lines", len(items))),
	)
	defer span.End()

	outcome := &Outcome{BatchID: uuid.New()}
	alloc := p.planRedemption(ctx, items, params)

	for _, t := range []cart.ItemType{
		cart.TypeECoupon,
		cart.TypePromoPackage,
		cart.TypeAgencyPackage,
		cart.TypeProduct,
	} {
		for _, li := range items {
			if li.Type != t {
				continue
			}
			p.submitLine(ctx, li, rec, params, alloc, outcome)
		}
	}

	p.reconcile(ctx, outcome)

	lg.Info("Order submission finished",
		zap.String("batch_id", outcome.BatchID.String()),
		zap.Int("succeeded", outcome.Succeeded),
		zap.Int("failed", outcome.Failed),
	)
	return outcome, nil
}

// planRedemption computes the reward allocation over the PRODUCT lines in
// cart order. A failed balance fetch degrades to zero redemption rather
// than blocking the whole submission.
func (p *Pipeline) planRedemption(ctx context.Context, items []cart.LineItem, params SubmitParams) reward.Allocation {
	var lines []reward.Line
	for _, li := range items {
		if li.Type != cart.TypeProduct {
			continue
		}
		meta, _ := li.Meta.(cart.ProductMeta)
		lines = append(lines, reward.Line{
			Key:          li.Key,
			UnitPrice:    li.UnitPrice,
			Qty:          li.Qty,
			MaxRewardPct: meta.MaxRewardPct,
		})
	}

	if len(lines) == 0 || !params.RequestedRedeem.IsPositive() {
		return reward.Plan(lines, decimal.Zero, decimal.Zero)
	}

	available, err := p.rewards.RewardPointsSummary(ctx)
	if err != nil {
		zctx.From(ctx).Warn("Reward balance fetch failed, submitting without redemption", zap.Error(err))
		return reward.Plan(lines, decimal.Zero, decimal.Zero)
	}
	return reward.Plan(lines, available, params.RequestedRedeem)
}

// submitLine issues one collaborator call and records its result.
func (p *Pipeline) submitLine(
	ctx context.Context,
	li cart.LineItem,
	rec checkout.Record,
	params SubmitParams,
	alloc reward.Allocation,
	outcome *Outcome,
) {
	ctx, span := p.tracer.Start(ctx, "order.SubmitLine",
		trace.WithAttributes(
			attribute.String("line.key", li.Key),
			attribute.String("line.type", string(li.Type)),
		),
	)
	defer span.End()

	var err error
	switch li.Type {
	case cart.TypeECoupon:
		err = p.backend.CreateEcouponOrder(ctx, p.ecouponRequest(li, rec, params.PaymentMethod))
	case cart.TypePromoPackage:
		err = p.backend.CreatePromoPurchase(ctx, p.promoRequest(li))
	case cart.TypeAgencyPackage:
		id, req := p.agencyRequest(li)
		err = p.backend.CreateAgencyPaymentRequest(ctx, id, req)
	case cart.TypeProduct:
		err = p.backend.CreateProductPurchaseRequest(ctx, p.productRequest(li, rec, alloc))
	default:
		err = errors.Errorf("unknown line type %q", li.Type)
	}

	res := Result{Key: li.Key, Name: li.Name, Type: li.Type, OK: err == nil}
	if err != nil {
		res.Message = failureMessage(li.Type, err)
		outcome.Failed++
		span.RecordError(err)
	} else {
		outcome.Succeeded++
	}
	outcome.Results = append(outcome.Results, res)

	if p.submitted != nil {
		p.submitted.Add(ctx, 1, metric.WithAttributes(
			attribute.String("line.type", string(li.Type)),
			attribute.Bool("ok", res.OK),
		))
	}
	if p.journal != nil {
		if jerr := p.journal.AppendSubmission(ctx, outcome.BatchID, li.Key, string(li.Type), li.Subtotal(), res.OK, res.Message); jerr != nil {
			zctx.From(ctx).Warn("Submission journal append failed", zap.Error(jerr))
		}
	}
}

// reconcile removes exactly the succeeded lines from the cart. When every
// line succeeded the checkout record is reset and the run is complete;
// otherwise the remaining lines stay behind for a user-triggered retry.
func (p *Pipeline) reconcile(ctx context.Context, outcome *Outcome) {
	lg := zctx.From(ctx)

	for _, res := range outcome.Results {
		if !res.OK {
			continue
		}
		if err := p.carts.RemoveItem(ctx, res.Key); err != nil {
			lg.Warn("Failed to remove submitted line from cart",
				zap.String("key", res.Key), zap.Error(err))
		}
	}

	if outcome.Failed == 0 {
		if err := p.checkouts.Reset(ctx); err != nil {
			lg.Warn("Failed to reset checkout after completed order", zap.Error(err))
		}
		outcome.Complete = true
	}
}

// failureMessage maps a per-line error to its display message: the
// collaborator's own detail when present, then the error text, then a
// type-specific default.
func failureMessage(t cart.ItemType, err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	switch t {
	case cart.TypeECoupon:
		return "e-coupon order failed"
	case cart.TypePromoPackage:
		return "promo package purchase failed"
	case cart.TypeAgencyPackage:
		return "agency payment request failed"
	default:
		return "product purchase request failed"
	}
}
