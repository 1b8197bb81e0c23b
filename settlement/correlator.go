package settlement

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ellemouton/lndboard/broadcast"
	"github.com/ellemouton/lndboard/comments"
	"github.com/ellemouton/lndboard/invoices"
	"github.com/ellemouton/lndboard/lnurl"
)

const defaultStoreTimeout = 10 * time.Second

var (
	ErrStopped = errors.New("correlator is stopped")

	errStreamClosed = errors.New("settlement stream closed")
)

type State uint8

const (
	StateUnknown State = iota
	StateInvoiced
	StateWaiting
	StateApplied
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateInvoiced:
		return "INVOICED"
	case StateWaiting:
		return "WAITING"
	case StateApplied:
		return "APPLIED"
	case StateAbandoned:
		return "ABANDONED"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	Gateway invoices.Gateway
	Store   comments.Store
	Feed    *comments.Feed
	Hub     *broadcast.Hub

	// Metadata is the offer metadata every description hash commits to.
	Metadata string

	// InvoiceTTL is used as the invoice expiry and bounds how long a
	// settlement is waited for. Zero waits until Stop.
	InvoiceTTL time.Duration

	// StoreTimeout bounds a single comment write.
	StoreTimeout time.Duration

	// Backoff paces resubscription after the settlement stream fails.
	// Defaults to an exponential backoff without an elapsed time limit.
	Backoff func() backoff.BackOff
}

// Invoice is a snapshot of an invoice the correlator is responsible for.
type Invoice struct {
	Hash      lntypes.Hash
	Amount    lnwire.MilliSatoshi
	State     State
	CreatedAt time.Time
}

type pending struct {
	invoice  *invoices.PendingInvoice
	callback *lnurl.CallbackContext
	state    State
}

// Correlator binds validated callbacks to invoices and applies each
// callback's comment once its invoice settles.
type Correlator struct {
	cfg *Config
	log *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[lntypes.Hash]*pending
	stopped bool

	// applyMu orders store appends, feed appends and broadcasts the same
	// way.
	applyMu sync.Mutex
}

func NewCorrelator(cfg *Config) *Correlator {
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}

	if cfg.Backoff == nil {
		cfg.Backoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 0
			return b
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Correlator{
		cfg:     cfg,
		log:     logrus.StandardLogger().WithField("type", "settlement/correlator"),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[lntypes.Hash]*pending),
	}
}

// Invoice creates an invoice for cb and starts waiting for it to settle in
// the background. The returned invoice is ready to be handed to the payer.
//
// Failures to create the invoice wrap invoices.ErrUpstreamUnavailable, in
// which case cb is discarded.
func (c *Correlator) Invoice(ctx context.Context,
	cb *lnurl.CallbackContext) (*invoices.PendingInvoice, error) {

	if c.isStopped() {
		return nil, ErrStopped
	}

	descHash := lnurl.DescriptionHash(c.cfg.Metadata, cb.RawPayerData)

	inv, err := c.cfg.Gateway.CreateInvoice(
		ctx, cb.Amount, descHash, c.cfg.InvoiceTTL,
	)
	if err != nil {
		invoiceFailures.Inc()
		c.log.WithError(err).Warn("failure creating invoice")

		if !errors.Is(err, invoices.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %v", invoices.ErrUpstreamUnavailable,
				err)
		}
		return nil, err
	}

	log := c.log.WithField("payment_hash", inv.Hash.String())

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		log.Warn("stopped while creating invoice, it won't be watched")
		return nil, ErrStopped
	}

	if _, ok := c.pending[inv.Hash]; ok {
		return nil, errors.Errorf("invoice %v is already pending",
			inv.Hash)
	}

	p := &pending{
		invoice:  inv,
		callback: cb,
		state:    StateInvoiced,
	}
	c.pending[inv.Hash] = p
	pendingInvoices.Inc()
	invoicesCreated.Inc()

	var (
		watchCtx context.Context
		cancel   context.CancelFunc
	)
	if c.cfg.InvoiceTTL > 0 {
		watchCtx, cancel = context.WithTimeout(c.ctx, c.cfg.InvoiceTTL)
	} else {
		watchCtx, cancel = context.WithCancel(c.ctx)
	}

	c.wg.Add(1)
	go c.watch(watchCtx, cancel, p)

	log.WithField("amount", cb.Amount).Debug("invoice created")

	cloned := *inv
	return &cloned, nil
}

// Pending returns every invoice still being watched, oldest first.
func (c *Correlator) Pending() []*Invoice {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := make([]*Invoice, 0, len(c.pending))
	for _, p := range c.pending {
		res = append(res, &Invoice{
			Hash:      p.invoice.Hash,
			Amount:    p.invoice.Amount,
			State:     p.state,
			CreatedAt: p.invoice.CreatedAt,
		})
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})

	return res
}

// Stop abandons every pending invoice and waits for their watchers to exit.
// Invoices created afterwards fail with ErrStopped.
func (c *Correlator) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Correlator) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stopped
}

// watch waits for p's invoice to settle, resubscribing whenever the stream
// fails, until it is applied or ctx ends. Subscription attempts share one
// backoff, so a stream that keeps failing is retried at a growing interval.
func (c *Correlator) watch(ctx context.Context, cancel context.CancelFunc,
	p *pending) {

	defer c.wg.Done()
	defer cancel()
	defer c.finish(p)

	hash := p.invoice.Hash
	log := c.log.WithField("payment_hash", hash.String())

	b := backoff.WithContext(c.cfg.Backoff(), ctx)
	b.Reset()

	for {
		// Each subscription gets its own context so a failed stream is
		// torn down before the next one is opened.
		subCtx, subCancel := context.WithCancel(ctx)

		updates, errChan, err := c.cfg.Gateway.SubscribeSettlement(
			subCtx, hash,
		)
		if err != nil {
			subCancel()
			log.WithError(err).Warn("failure subscribing to settlement")

			if !wait(ctx, b) {
				return
			}
			continue
		}

		c.setState(p, StateWaiting)

		err = c.consume(subCtx, p, updates, errChan, b)
		subCancel()

		if err == nil || ctx.Err() != nil {
			return
		}

		log.WithError(err).Warn("settlement stream failed, resubscribing")

		if !wait(ctx, b) {
			return
		}
	}
}

// wait sleeps for the next backoff interval. It returns false if ctx ended
// or the backoff gave up.
func wait(ctx context.Context, b backoff.BackOff) bool {
	d := b.NextBackOff()
	if d == backoff.Stop {
		return false
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// consume reads the settlement stream until the invoice settles, in which
// case it returns nil, or the stream or ctx fail. The first update only
// replays the current state, b is reset once a later one shows the stream
// is healthy.
func (c *Correlator) consume(ctx context.Context, p *pending,
	updates <-chan *invoices.SettlementUpdate, errChan <-chan error,
	b backoff.BackOff) error {

	var received int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			return err

		case update, ok := <-updates:
			if !ok {
				return errStreamClosed
			}

			received++
			if received > 1 {
				b.Reset()
			}

			if !update.Settled {
				continue
			}

			c.apply(p, update)
			return nil
		}
	}
}

// apply posts p's comment. Only the first call for p has any effect.
func (c *Correlator) apply(p *pending, update *invoices.SettlementUpdate) {
	c.mu.Lock()
	if p.state == StateApplied || p.state == StateAbandoned {
		c.mu.Unlock()
		return
	}
	p.state = StateApplied
	c.mu.Unlock()

	log := c.log.WithField("payment_hash", p.invoice.Hash.String())

	if update.AmountPaid != 0 && update.AmountPaid < p.invoice.Amount {
		log.WithField("amount_paid", update.AmountPaid).
			Warn("invoice settled for less than its amount")
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	comment := &comments.Comment{
		Text: ComposeText(p.callback),
	}

	ctx, cancel := context.WithTimeout(
		context.Background(), c.cfg.StoreTimeout,
	)
	defer cancel()

	if err := c.cfg.Store.Append(ctx, comment); err != nil {
		persistFailures.Inc()
		log.WithError(err).Error("failure storing comment, " +
			"broadcasting it anyway")

		comment.CreatedAt = time.Now()
	}

	c.cfg.Feed.Append(comment)
	c.cfg.Hub.Publish(broadcast.NewCommentEvent(comment))
	commentsApplied.Inc()

	log.WithField("comment_id", comment.Id).Info("comment posted")
}

func (c *Correlator) setState(p *pending, state State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.state == StateInvoiced {
		p.state = state
	}
}

// finish removes p from the registry once its watcher exits.
func (c *Correlator) finish(p *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pending, p.invoice.Hash)
	pendingInvoices.Dec()

	if p.state == StateApplied {
		return
	}

	p.state = StateAbandoned
	watchersAbandoned.Inc()

	c.log.WithField("payment_hash", p.invoice.Hash.String()).
		Debug("invoice abandoned before settling")
}

// ComposeText returns the text posted for cb: the comment, prefixed with the
// payer's name when one was supplied.
func ComposeText(cb *lnurl.CallbackContext) string {
	if name := cb.DisplayName(); name != "" {
		return name + ": " + cb.Comment
	}

	return cb.Comment
}
