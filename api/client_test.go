package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramkart/commerce-core/cart"
	"github.com/gramkart/commerce-core/postal"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k-123"})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestCreateEcouponOrderPayload(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/ecoupon", r.URL.Path)
		assert.Equal(t, "k-123", r.Header.Get("api_key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	err := c.CreateEcouponOrder(context.Background(), EcouponOrderRequest{
		CouponID:     "e1",
		Quantity:     2,
		Denomination: decimal.NewFromInt(100),
		Season:       "PONGAL",
		UTR:          "UTR42",
		Notes:        "payment method: manual",
	})
	require.NoError(t, err)

	assert.Equal(t, "e1", got["coupon_id"])
	assert.Equal(t, float64(2), got["quantity"])
	assert.Equal(t, "100", got["denomination"])
	assert.Equal(t, "UTR42", got["utr"])
}

func TestCreateEcouponOrderWithFileUsesMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("payload")), &got))
		assert.Equal(t, "e1", got["coupon_id"])

		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		assert.Equal(t, "proof.png", header.Filename)

		w.WriteHeader(http.StatusOK)
	})

	err := c.CreateEcouponOrder(context.Background(), EcouponOrderRequest{
		CouponID: "e1",
		Quantity: 1,
		File:     &cart.Attachment{Name: "proof.png", Data: []byte{0x89, 0x50}},
	})
	require.NoError(t, err)
}

func TestCreatePromoPurchaseMonthlyShape(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := c.CreatePromoPurchase(context.Background(), PromoPurchaseRequest{
		PackageID:     "promo-9",
		Kind:          cart.PromoMonthly,
		Quantity:      1,
		PackageNumber: 3,
		Boxes:         []string{"JAN", "FEB"},
	})
	require.NoError(t, err)

	assert.Equal(t, float64(3), got["package_number"])
	assert.Equal(t, []any{"JAN", "FEB"}, got["boxes"])
	assert.NotContains(t, got, "selected_product_id")
	assert.NotContains(t, got, "shipping_address")
}

func TestCreatePromoPurchasePrimeShape(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := c.CreatePromoPurchase(context.Background(), PromoPurchaseRequest{
		PackageID:         "promo-prime",
		Kind:              cart.PromoPrime,
		Quantity:          1,
		SelectedProductID: "p-77",
		Prime150Choice:    "oil",
		ShippingAddress:   postal.Address{Village: "Seithur", Pincode: "626121"},
	})
	require.NoError(t, err)

	assert.Equal(t, "p-77", got["selected_product_id"])
	assert.Equal(t, "oil", got["prime150_choice"])
	addr, ok := got["shipping_address"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Seithur", addr["village"])
	assert.NotContains(t, got, "package_number")
}

func TestCreatePromoPurchaseOtherKindMinimalShape(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := c.CreatePromoPurchase(context.Background(), PromoPurchaseRequest{
		PackageID: "promo-basic",
		Quantity:  2,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"package_id": "promo-basic", "quantity": float64(2)}, got)
}

func TestCreateAgencyPaymentRequestPath(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agency/packages/plan-1/payment", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := c.CreateAgencyPaymentRequest(context.Background(), "plan-1", AgencyPaymentRequest{
		Amount:    decimal.RequireFromString("5000.00"),
		Method:    "agency_package",
		Reference: "ref-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "5000", got["amount"])
}

func TestErrorDetailPreferred(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"coupon sold out"}`))
	})

	err := c.CreateEcouponOrder(context.Background(), EcouponOrderRequest{CouponID: "e1", Quantity: 1})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "coupon sold out", apiErr.Error())
}

func TestErrorWithoutDetailFallsBackToStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.CreateProductPurchaseRequest(context.Background(), ProductPurchaseRequest{ProductID: "7", Quantity: 1})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, strings.Contains(apiErr.Error(), "502"))
}

func TestRewardPointsSummary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rewards/summary", r.URL.Path)
		_, _ = w.Write([]byte(`{"available_points":"1250.50"}`))
	})

	points, err := c.RewardPointsSummary(context.Background())
	require.NoError(t, err)
	assert.True(t, points.Equal(decimal.RequireFromString("1250.50")))
}

func TestReverseGeocode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "9.45", r.URL.Query().Get("lat"))
		_, _ = w.Write([]byte(`{"village":"Seithur","district":"Virudhunagar","pincode":"626121"}`))
	})

	addr, err := c.ReverseGeocode(context.Background(), 9.45, 77.55)
	require.NoError(t, err)
	assert.Equal(t, "Seithur", addr.Village)
	assert.Equal(t, "626121", addr.Pincode)
}

func TestPincodeLookupAndOfficeSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/postal/pincode/626121":
			_, _ = w.Write([]byte(`{"pincode":"626121","district":"Virudhunagar","villages":["Seithur"]}`))
		case "/postal/offices":
			assert.Equal(t, "seithur", r.URL.Query().Get("query"))
			assert.Equal(t, "626121", r.URL.Query().Get("pin"))
			_, _ = w.Write([]byte(`{"villages":["Seithur"],"gram_panchayats":["Seithur GP"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	rec, err := c.PincodeLookup(context.Background(), "626121")
	require.NoError(t, err)
	assert.Equal(t, "Virudhunagar", rec.District)

	m, err := c.PostOfficeSearch(context.Background(), "seithur", "626121")
	require.NoError(t, err)
	assert.Equal(t, []string{"Seithur"}, m.Villages)
	assert.Equal(t, []string{"Seithur GP"}, m.GramPanchayats)
}

func TestOutboundThrottle(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"available_points":"10"}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, RateLimit: 2, RateWindow: time.Minute})
	require.NoError(t, err)

	ctx := context.Background()
	for range 2 {
		_, err := c.RewardPointsSummary(ctx)
		require.NoError(t, err)
	}

	_, err = c.RewardPointsSummary(ctx)
	require.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, 2, hits, "throttled request never reaches the wire")
}
