package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/gramkart/commerce-core/postal"
)

// RewardPointsSummary returns the caller's available reward point balance.
func (c *Client) RewardPointsSummary(ctx context.Context) (decimal.Decimal, error) {
	var out struct {
		AvailablePoints decimal.Decimal `json:"available_points"`
	}
	if err := c.getJSON(ctx, "/rewards/summary", nil, &out); err != nil {
		return decimal.Zero, errors.Wrap(err, "reward points summary")
	}
	return out.AvailablePoints, nil
}

// ReverseGeocode resolves coordinates to address fields.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (postal.Address, error) {
	q := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(lon, 'f', -1, 64)},
	}
	var addr postal.Address
	if err := c.getJSON(ctx, "/geo/reverse", q, &addr); err != nil {
		return postal.Address{}, errors.Wrap(err, "reverse geocode")
	}
	return addr, nil
}

// PincodeLookup returns the postal metadata for a pincode.
func (c *Client) PincodeLookup(ctx context.Context, pin string) (*postal.PinRecord, error) {
	var rec postal.PinRecord
	if err := c.getJSON(ctx, "/postal/pincode/"+url.PathEscape(pin), nil, &rec); err != nil {
		return nil, errors.Wrapf(err, "pincode lookup %s", pin)
	}
	return &rec, nil
}

// PostOfficeSearch searches village and gram panchayat candidates by name,
// optionally restricted to one pincode.
func (c *Client) PostOfficeSearch(ctx context.Context, query, pin string) (postal.OfficeMatches, error) {
	q := url.Values{"query": {query}}
	if pin != "" {
		q.Set("pin", pin)
	}
	var m postal.OfficeMatches
	if err := c.getJSON(ctx, "/postal/offices", q, &m); err != nil {
		return postal.OfficeMatches{}, errors.Wrap(err, "post office search")
	}
	return m, nil
}
