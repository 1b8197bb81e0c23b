package invoices

import (
	"context"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/pkg/errors"
)

var (
	// ErrUpstreamUnavailable is returned when the node can't be reached
	// or refuses to create an invoice.
	ErrUpstreamUnavailable = errors.New("payment rail unavailable")
)

// PendingInvoice is an invoice that was created but is not known to be
// settled.
type PendingInvoice struct {
	Hash            lntypes.Hash
	PaymentRequest  string
	DescriptionHash [32]byte
	Amount          lnwire.MilliSatoshi
	CreatedAt       time.Time
}

// SettlementUpdate is a single notification about an invoice's state.
type SettlementUpdate struct {
	Settled    bool
	AmountPaid lnwire.MilliSatoshi
}

// Gateway is the narrow view of the lightning node the board needs.
type Gateway interface {
	// CreateInvoice adds an invoice for amount committing to
	// descriptionHash. A zero expiry leaves the node's default in place.
	//
	// Failures wrap ErrUpstreamUnavailable.
	CreateInvoice(ctx context.Context, amount lnwire.MilliSatoshi,
		descriptionHash [32]byte, expiry time.Duration) (*PendingInvoice,
		error)

	// SubscribeSettlement streams updates for the invoice with the given
	// payment hash until ctx is cancelled. Updates may repeat, and a
	// settled update may be delivered more than once.
	SubscribeSettlement(ctx context.Context, hash lntypes.Hash) (
		<-chan *SettlementUpdate, <-chan error, error)
}
