// Package namespace defines the role-scoped isolation boundary used by the
// cart and checkout stores. Each role sees a fully disjoint cart and checkout
// record; nothing migrates between namespaces when the active role changes.
package namespace

import "strings"

// Namespace identifies one role-scoped storage partition.
type Namespace string

const (
	Admin    Namespace = "admin"
	Agency   Namespace = "agency"
	Employee Namespace = "employee"
	Business Namespace = "business"
	User     Namespace = "user"
)

// FromPath derives the namespace from the leading segment of a route path.
// Unknown or empty prefixes fall back to the User namespace, which matches
// the public storefront routes having no role prefix.
func FromPath(path string) Namespace {
	trimmed := strings.TrimPrefix(path, "/")
	segment, _, _ := strings.Cut(trimmed, "/")

	switch Namespace(segment) {
	case Admin, Agency, Employee, Business, User:
		return Namespace(segment)
	default:
		return User
	}
}

// Valid reports whether ns is one of the known role namespaces.
func (ns Namespace) Valid() bool {
	switch ns {
	case Admin, Agency, Employee, Business, User:
		return true
	default:
		return false
	}
}

// StorageKey returns the persisted key for the given record prefix,
// e.g. StorageKey("cart") for the agency namespace yields "cart_agency".
func (ns Namespace) StorageKey(prefix string) string {
	return prefix + "_" + string(ns)
}
