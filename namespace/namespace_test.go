package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want Namespace
	}{
		{name: "agency route", path: "/agency/cart", want: Agency},
		{name: "admin route", path: "/admin/orders/42", want: Admin},
		{name: "employee route", path: "/employee", want: Employee},
		{name: "business route", path: "/business/checkout", want: Business},
		{name: "explicit user route", path: "/user/cart", want: User},
		{name: "unprefixed route", path: "/products/7", want: User},
		{name: "root", path: "/", want: User},
		{name: "empty", path: "", want: User},
		{name: "no leading slash", path: "agency/cart", want: Agency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromPath(tt.path))
		})
	}
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "cart_agency", Agency.StorageKey("cart"))
	assert.Equal(t, "checkout_user", User.StorageKey("checkout"))
}

func TestValid(t *testing.T) {
	assert.True(t, Agency.Valid())
	assert.False(t, Namespace("vendor").Valid())
}
