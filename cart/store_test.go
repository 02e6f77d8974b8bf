package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramkart/commerce-core/namespace"
	"github.com/gramkart/commerce-core/postal"
	"github.com/gramkart/commerce-core/state"
)

func newTestStore(t *testing.T) (*Store, *state.Memory) {
	t.Helper()
	backend := state.NewMemory()
	return NewStore(context.Background(), namespace.User, backend, nil), backend
}

func productParams() AddItemParams {
	return AddItemParams{
		Type:      TypeProduct,
		ID:        "7",
		Name:      "Cold-pressed oil",
		UnitPrice: decimal.RequireFromString("500.00"),
		Qty:       1,
		Meta: ProductMeta{
			MaxRewardPct:    decimal.NewFromInt(10),
			ShippingAddress: postal.Address{Village: "Seithur", Pincode: "626121"},
		},
	}
}

func TestAddItemMergesIdenticalAdditions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	key1, err := s.AddItem(ctx, productParams())
	require.NoError(t, err)
	key2, err := s.AddItem(ctx, productParams())
	require.NoError(t, err)

	assert.Equal(t, key1, key2)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Qty)
}

func TestAddItemClampsQty(t *testing.T) {
	s, _ := newTestStore(t)

	p := productParams()
	p.Qty = -3
	key, err := s.AddItem(context.Background(), p)
	require.NoError(t, err)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, key, items[0].Key)
	assert.Equal(t, 1, items[0].Qty)
}

func TestAddItemRejectsMismatchedMeta(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.AddItem(context.Background(), AddItemParams{
		Type: TypeECoupon,
		ID:   "e1",
		Qty:  1,
		Meta: ProductMeta{},
	})
	assert.ErrorIs(t, err, ErrMetaMismatch)
}

func TestUpdateQty(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	key, err := s.AddItem(ctx, productParams())
	require.NoError(t, err)

	require.NoError(t, s.UpdateQty(ctx, key, 5))
	assert.Equal(t, 5, s.Items()[0].Qty)

	// Clamped to 1.
	require.NoError(t, s.UpdateQty(ctx, key, 0))
	assert.Equal(t, 1, s.Items()[0].Qty)

	assert.ErrorIs(t, s.UpdateQty(ctx, "missing", 2), ErrLineNotFound)
}

func TestRemoveItemAlsoDropsAttachment(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p := productParams()
	p.File = &Attachment{Name: "proof.png", Data: []byte{1}}
	key, err := s.AddItem(ctx, p)
	require.NoError(t, err)
	require.NotNil(t, s.File(key))

	require.NoError(t, s.RemoveItem(ctx, key))
	assert.Empty(t, s.Items())
	assert.Nil(t, s.File(key))

	// Removing again is a no-op.
	require.NoError(t, s.RemoveItem(ctx, key))
}

func TestSetItemMetaShallowMerge(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	key, err := s.AddItem(ctx, AddItemParams{
		Type: TypePromoPackage,
		ID:   "promo-9",
		Qty:  1,
		Meta: PromoMeta{Kind: PromoMonthly, PackageNumber: 3},
	})
	require.NoError(t, err)

	require.NoError(t, s.SetItemMeta(ctx, key, PromoMeta{Boxes: []string{"JAN", "FEB"}}))

	meta, ok := s.Items()[0].Meta.(PromoMeta)
	require.True(t, ok)
	assert.Equal(t, PromoMonthly, meta.Kind)
	assert.Equal(t, 3, meta.PackageNumber)
	assert.Equal(t, []string{"JAN", "FEB"}, meta.Boxes)

	assert.ErrorIs(t, s.SetItemMeta(ctx, key, ProductMeta{}), ErrMetaMismatch)
}

func TestSetItemUnitPriceClampsToOne(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	key, err := s.AddItem(ctx, productParams())
	require.NoError(t, err)

	require.NoError(t, s.SetItemUnitPrice(ctx, key, decimal.RequireFromString("0.25")))
	assert.True(t, s.Items()[0].UnitPrice.Equal(decimal.NewFromInt(1)))

	require.NoError(t, s.SetItemUnitPrice(ctx, key, decimal.RequireFromString("750.50")))
	assert.True(t, s.Items()[0].UnitPrice.Equal(decimal.RequireFromString("750.50")))
}

func TestSetItemFileNotifiesWithoutPersisting(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	key, err := s.AddItem(ctx, productParams())
	require.NoError(t, err)

	before, ok, err := backend.Get(ctx, "cart_user")
	require.NoError(t, err)
	require.True(t, ok)

	notified := 0
	unsub := s.Subscribe(func(Snapshot) { notified++ })
	defer unsub()
	require.Equal(t, 1, notified) // replay on subscribe

	require.NoError(t, s.SetItemFile(key, &Attachment{Name: "slip.jpg"}))
	assert.Equal(t, 2, notified)

	after, ok, err := backend.Get(ctx, "cart_user")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before, after, "file mutation must not write to the backend")
}

func TestClearCart(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p := productParams()
	p.File = &Attachment{Name: "proof.png"}
	key, err := s.AddItem(ctx, p)
	require.NoError(t, err)

	require.NoError(t, s.ClearCart(ctx))
	assert.Empty(t, s.Items())
	assert.Nil(t, s.File(key))
}

func TestRoundTripPersistenceStripsFiles(t *testing.T) {
	backend := state.NewMemory()
	ctx := context.Background()
	s := NewStore(ctx, namespace.Agency, backend, nil)

	_, err := s.AddItem(ctx, AddItemParams{
		Type: TypeECoupon, ID: "e1", Name: "Pongal coupon",
		UnitPrice: decimal.NewFromInt(100), Qty: 2,
		Meta: ECouponMeta{Denomination: decimal.NewFromInt(100), Season: "PONGAL"},
		File: &Attachment{Name: "proof.png", Data: []byte{0xff}},
	})
	require.NoError(t, err)
	_, err = s.AddItem(ctx, productParams())
	require.NoError(t, err)
	_, err = s.AddItem(ctx, AddItemParams{
		Type: TypeAgencyPackage, ID: "plan-1", Name: "Agency plan",
		UnitPrice: decimal.NewFromInt(5000), Qty: 1,
		Meta: AgencyMeta{PlanID: "plan-1"},
	})
	require.NoError(t, err)

	// Reload from the same backend, as after a restart.
	reloaded := NewStore(ctx, namespace.Agency, backend, nil)
	items := reloaded.Items()
	require.Len(t, items, 3)

	for i, want := range s.Items() {
		got := items[i]
		assert.Equal(t, want.Key, got.Key)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Name, got.Name)
		assert.True(t, want.UnitPrice.Equal(got.UnitPrice))
		assert.Equal(t, want.Qty, got.Qty)
		assert.Equal(t, want.Meta, got.Meta)
	}

	// The attachment did not survive the reload.
	for _, li := range items {
		assert.Nil(t, reloaded.File(li.Key))
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	backend := state.NewMemory()
	ctx := context.Background()

	agency := NewStore(ctx, namespace.Agency, backend, nil)
	user := NewStore(ctx, namespace.User, backend, nil)

	_, err := agency.AddItem(ctx, productParams())
	require.NoError(t, err)

	assert.Len(t, agency.Items(), 1)
	assert.Empty(t, user.Items())
}

func TestCorruptSnapshotDegradesToEmpty(t *testing.T) {
	backend := state.NewMemory()
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, "cart_user", []byte("{not json")))

	s := NewStore(ctx, namespace.User, backend, nil)
	assert.Empty(t, s.Items())
}
