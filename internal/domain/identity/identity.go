// Package identity defines the caller identity supplied by the upstream
// authentication layer. Roles are a closed set; anything outside it is
// rejected at the boundary.
package identity

import "github.com/go-faster/errors"

// Role enumerates the supported caller roles.
type Role string

const (
	// RoleAdmin may manage coupons and mutate any order.
	RoleAdmin Role = "ADMIN"
	// RoleCustomer may only operate on their own carts and orders.
	RoleCustomer Role = "CUSTOMER"
)

// ErrUnknownRole is returned by ParseRole for values outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole validates a raw role string against the closed role set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleCustomer:
		return Role(s), nil
	default:
		return "", ErrUnknownRole
	}
}

// Actor is the resolved identity of the caller performing an operation.
type Actor struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
