package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercatto/checkout/internal/domain/identity"
)

var (
	adminActor = identity.Actor{UserID: "op", Role: identity.RoleAdmin}
	owner      = identity.Actor{UserID: "u1", Role: identity.RoleCustomer}
	stranger   = identity.Actor{UserID: "u2", Role: identity.RoleCustomer}
)

func pendingOrder() *Order {
	return &Order{ID: "o1", CustomerID: "u1", Status: StatusPending}
}

func TestAuthorize(t *testing.T) {
	o := pendingOrder()

	require.NoError(t, Authorize(owner, o, OpRewriteItems))
	require.NoError(t, Authorize(adminActor, o, OpRewriteItems))
	require.ErrorIs(t, Authorize(stranger, o, OpRewriteItems), ErrForbidden)

	// Unknown role has no capabilities.
	nobody := identity.Actor{UserID: "x", Role: identity.Role("SUPPORT")}
	require.ErrorIs(t, Authorize(nobody, o, OpRewriteItems), ErrForbidden)
}

func TestAuthorizeTransition(t *testing.T) {
	o := pendingOrder()

	// Customers may only cancel their own pending order.
	require.NoError(t, AuthorizeTransition(owner, o, StatusCancelled))
	require.ErrorIs(t, AuthorizeTransition(owner, o, StatusConfirmed), ErrForbidden)
	require.ErrorIs(t, AuthorizeTransition(stranger, o, StatusCancelled), ErrForbidden)

	// Admins may make any legal transition.
	require.NoError(t, AuthorizeTransition(adminActor, o, StatusConfirmed))

	confirmed := pendingOrder()
	confirmed.Status = StatusConfirmed
	require.NoError(t, AuthorizeTransition(adminActor, confirmed, StatusDelivered))
	require.ErrorIs(t, AuthorizeTransition(owner, confirmed, StatusDelivered), ErrForbidden)
}

func TestCheckMutable(t *testing.T) {
	tests := []struct {
		status  Status
		op      Operation
		wantErr error
	}{
		{StatusPending, OpRewriteItems, nil},
		{StatusPending, OpRewriteAddress, nil},
		{StatusPending, OpRewritePayment, nil},
		{StatusConfirmed, OpRewriteItems, ErrOrderLocked},
		{StatusConfirmed, OpRewriteAddress, ErrOrderLocked},
		{StatusConfirmed, OpRewritePayment, ErrOrderLocked},
		{StatusDelivered, OpRewriteItems, ErrOrderLocked},
		{StatusCancelled, OpRewriteItems, ErrOrderLocked},

		{StatusPending, OpDelete, nil},
		{StatusCancelled, OpDelete, nil},
		{StatusConfirmed, OpDelete, ErrOrderLocked},
		{StatusDelivered, OpDelete, ErrOrderLocked},

		// Status changes are the state machine's business.
		{StatusDelivered, OpTransition, nil},
	}

	for _, tt := range tests {
		o := &Order{Status: tt.status}
		err := CheckMutable(o, tt.op)
		if tt.wantErr == nil {
			assert.NoError(t, err, "%s/%s", tt.status, tt.op)
		} else {
			assert.ErrorIs(t, err, tt.wantErr, "%s/%s", tt.status, tt.op)
		}
	}
}
