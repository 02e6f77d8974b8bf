package commerce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramkart/commerce-core/cart"
	"github.com/gramkart/commerce-core/namespace"
	"github.com/gramkart/commerce-core/state"
)

func testConfig(baseURL string) Config {
	return Config{API: APIConfig{BaseURL: baseURL, Key: "test-key"}}
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestStoresCachedPerNamespace(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, testConfig("http://localhost:1"), WithStateBackend(state.NewMemory()))
	require.NoError(t, err)
	defer app.Close()

	agency := app.Cart(ctx, namespace.Agency)
	assert.Same(t, agency, app.Cart(ctx, namespace.Agency))
	assert.NotSame(t, agency, app.Cart(ctx, namespace.User))

	orders := app.Orders(ctx, namespace.Agency)
	assert.Same(t, orders, app.Orders(ctx, namespace.Agency))
}

func TestNamespaceIsolationThroughFacade(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, testConfig("http://localhost:1"), WithStateBackend(state.NewMemory()))
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Cart(ctx, namespace.Agency).AddItem(ctx, cart.AddItemParams{
		Type: cart.TypeECoupon, ID: "e1", Name: "Coupon",
		UnitPrice: decimal.NewFromInt(100), Qty: 1,
	})
	require.NoError(t, err)

	assert.Len(t, app.Cart(ctx, namespace.Agency).Items(), 1)
	assert.Empty(t, app.Cart(ctx, namespace.User).Items())
}

func TestLocationNilWithoutSource(t *testing.T) {
	app, err := New(context.Background(), testConfig("http://localhost:1"))
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Location())
}

func TestLookupPincodeFallsBackToCollaborator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/postal/pincode/626121", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pincode":"626121","district":"Virudhunagar","state":"Tamil Nadu","villages":["Seithur"]}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	app, err := New(ctx, testConfig(srv.URL))
	require.NoError(t, err)
	defer app.Close()

	rec, err := app.LookupPincode(ctx, "626121")
	require.NoError(t, err)
	assert.Equal(t, "Virudhunagar", rec.District)
	assert.Equal(t, []string{"Seithur"}, rec.Villages)
}
