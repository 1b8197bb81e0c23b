// Package mock provides an in-memory invoices.Gateway whose settlement stream
// is driven by the caller.
package mock

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/pkg/errors"

	"github.com/ellemouton/lndboard/invoices"
)

const updateBuffer = 16

type invoice struct {
	pending *invoices.PendingInvoice
	settled bool
	expiry  time.Duration
}

type subscription struct {
	updates chan *invoices.SettlementUpdate
	errs    chan error
}

// Gateway is safe for concurrent use.
type Gateway struct {
	mu       sync.Mutex
	invoices map[lntypes.Hash]*invoice
	order    []lntypes.Hash
	subs     map[lntypes.Hash][]*subscription

	createErr    error
	subscribeErr error
	subscribes   int
}

var _ invoices.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{
		invoices: make(map[lntypes.Hash]*invoice),
		subs:     make(map[lntypes.Hash][]*subscription),
	}
}

// FailCreate makes CreateInvoice fail with err until it is called with nil.
func (g *Gateway) FailCreate(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.createErr = err
}

// FailSubscribe makes SubscribeSettlement fail with err until it is called
// with nil.
func (g *Gateway) FailSubscribe(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.subscribeErr = err
}

// CreateInvoice implements invoices.Gateway.CreateInvoice.
func (g *Gateway) CreateInvoice(_ context.Context, amount lnwire.MilliSatoshi,
	descriptionHash [32]byte, expiry time.Duration) (
	*invoices.PendingInvoice, error) {

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.createErr != nil {
		return nil, fmt.Errorf("%w: %v", invoices.ErrUpstreamUnavailable,
			g.createErr)
	}

	var preimage lntypes.Preimage
	if _, err := rand.Read(preimage[:]); err != nil {
		return nil, err
	}
	hash := lntypes.Hash(sha256.Sum256(preimage[:]))

	pending := &invoices.PendingInvoice{
		Hash: hash,
		PaymentRequest: fmt.Sprintf("lnbcrt%dn1%s", amount.ToSatoshis(),
			hex.EncodeToString(hash[:8])),
		DescriptionHash: descriptionHash,
		Amount:          amount,
		CreatedAt:       time.Now(),
	}

	g.invoices[hash] = &invoice{pending: pending, expiry: expiry}
	g.order = append(g.order, hash)

	cloned := *pending
	return &cloned, nil
}

// SubscribeSettlement implements invoices.Gateway.SubscribeSettlement. Like
// lnd, the current state is delivered first.
func (g *Gateway) SubscribeSettlement(ctx context.Context,
	hash lntypes.Hash) (<-chan *invoices.SettlementUpdate, <-chan error,
	error) {

	g.mu.Lock()
	defer g.mu.Unlock()

	g.subscribes++

	if g.subscribeErr != nil {
		return nil, nil, fmt.Errorf("%w: %v",
			invoices.ErrUpstreamUnavailable, g.subscribeErr)
	}

	inv, ok := g.invoices[hash]
	if !ok {
		return nil, nil, errors.New("unknown invoice")
	}

	sub := &subscription{
		updates: make(chan *invoices.SettlementUpdate, updateBuffer),
		errs:    make(chan error, 1),
	}
	sub.updates <- &invoices.SettlementUpdate{
		Settled:    inv.settled,
		AmountPaid: settledAmount(inv),
	}
	g.subs[hash] = append(g.subs[hash], sub)

	go func() {
		<-ctx.Done()

		g.mu.Lock()
		defer g.mu.Unlock()

		g.removeSub(hash, sub)
	}()

	return sub.updates, sub.errs, nil
}

// Settle marks the invoice paid and notifies every open subscription. It may
// be called repeatedly to simulate duplicate notifications.
func (g *Gateway) Settle(hash lntypes.Hash) error {
	return g.update(hash, true)
}

// Touch sends a non-settled update, as lnd does when an HTLC is accepted.
func (g *Gateway) Touch(hash lntypes.Hash) error {
	return g.update(hash, false)
}

// BreakStream delivers err on every open subscription for hash and closes
// them, as happens when the connection to lnd drops.
func (g *Gateway) BreakStream(hash lntypes.Hash, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, sub := range g.subs[hash] {
		sub.errs <- err
		close(sub.updates)
	}
	delete(g.subs, hash)
}

func (g *Gateway) update(hash lntypes.Hash, settled bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	inv, ok := g.invoices[hash]
	if !ok {
		return errors.New("unknown invoice")
	}
	inv.settled = inv.settled || settled

	for _, sub := range g.subs[hash] {
		select {
		case sub.updates <- &invoices.SettlementUpdate{
			Settled:    settled,
			AmountPaid: settledAmount(inv),
		}:
		default:
			return errors.New("subscriber is not reading updates")
		}
	}

	return nil
}

// Invoices returns every created invoice in creation order.
func (g *Gateway) Invoices() []*invoices.PendingInvoice {
	g.mu.Lock()
	defer g.mu.Unlock()

	res := make([]*invoices.PendingInvoice, 0, len(g.order))
	for _, hash := range g.order {
		cloned := *g.invoices[hash].pending
		res = append(res, &cloned)
	}

	return res
}

// Expiry returns the expiry the invoice was created with.
func (g *Gateway) Expiry(hash lntypes.Hash) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	if inv, ok := g.invoices[hash]; ok {
		return inv.expiry
	}

	return 0
}

// Subscribers returns the number of open subscriptions for hash.
func (g *Gateway) Subscribers(hash lntypes.Hash) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.subs[hash])
}

// Subscribes returns how many times SubscribeSettlement was called.
func (g *Gateway) Subscribes() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.subscribes
}

func (g *Gateway) removeSub(hash lntypes.Hash, sub *subscription) {
	subs := g.subs[hash]
	for i, s := range subs {
		if s == sub {
			g.subs[hash] = append(subs[:i], subs[i+1:]...)
			close(sub.updates)
			break
		}
	}

	if len(g.subs[hash]) == 0 {
		delete(g.subs, hash)
	}
}

func settledAmount(inv *invoice) lnwire.MilliSatoshi {
	if !inv.settled {
		return 0
	}

	return inv.pending.Amount
}
