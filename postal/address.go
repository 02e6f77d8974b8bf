// Package postal holds postal address types shared across the cart, the
// geolocation resolver, and the collaborator API client, plus an offline
// pincode directory used when the backend lookup service is unreachable.
package postal

import "strings"

// Address is a resolved postal address. Fields mirror the reverse-geocode
// collaborator response; any of them may be empty.
type Address struct {
	Line1         string `json:"line1,omitempty"`
	Village       string `json:"village,omitempty"`
	GramPanchayat string `json:"gram_panchayat,omitempty"`
	City          string `json:"city,omitempty"`
	District      string `json:"district,omitempty"`
	State         string `json:"state,omitempty"`
	Pincode       string `json:"pincode,omitempty"`
	Country       string `json:"country,omitempty"`
}

// IsZero reports whether every field of the address is empty.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String renders the non-empty fields joined by commas, most specific first.
func (a Address) String() string {
	parts := make([]string, 0, 8)
	for _, p := range []string{
		a.Line1, a.Village, a.GramPanchayat, a.City,
		a.District, a.State, a.Pincode, a.Country,
	} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// PinRecord is the postal metadata for one pincode.
type PinRecord struct {
	Pincode        string   `json:"pincode"`
	City           string   `json:"city,omitempty"`
	District       string   `json:"district,omitempty"`
	State          string   `json:"state,omitempty"`
	Country        string   `json:"country,omitempty"`
	Lat            float64  `json:"lat,omitempty"`
	Lon            float64  `json:"lon,omitempty"`
	Villages       []string `json:"villages,omitempty"`
	GramPanchayats []string `json:"gram_panchayats,omitempty"`
}

// OfficeMatches is the result of a post office search: candidate village and
// gram panchayat names, plus an optional advisory message from the source.
type OfficeMatches struct {
	Villages       []string `json:"villages"`
	GramPanchayats []string `json:"gram_panchayats"`
	Message        string   `json:"message,omitempty"`
}
