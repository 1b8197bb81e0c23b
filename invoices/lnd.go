package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/lightninglabs/lndclient"
	"github.com/lightningnetwork/lnd/channeldb"
	"github.com/lightningnetwork/lnd/lnrpc/invoicesrpc"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/sirupsen/logrus"
)

const defaultMemo = "lndboard comment"

type LndConfig struct {
	LndAddr     string
	Network     lndclient.Network
	MacaroonDir string
	TLSPath     string

	// Memo is only shown by wallets that ignore the description hash.
	Memo string
}

// LndGateway creates and watches invoices on an lnd node.
type LndGateway struct {
	log      *logrus.Entry
	lnd      *lndclient.GrpcLndServices
	client   lndclient.LightningClient
	invoices lndclient.InvoicesClient
	memo     string
}

var _ Gateway = (*LndGateway)(nil)

func NewLndGateway(cfg *LndConfig) (*LndGateway, error) {
	// Connect to LND.
	lnd, err := lndclient.NewLndServices(&lndclient.LndServicesConfig{
		LndAddress:  cfg.LndAddr,
		Network:     cfg.Network,
		MacaroonDir: cfg.MacaroonDir,
		TLSPath:     cfg.TLSPath,
	})
	if err != nil {
		return nil, err
	}

	memo := cfg.Memo
	if memo == "" {
		memo = defaultMemo
	}

	return &LndGateway{
		log:      logrus.StandardLogger().WithField("type", "invoices/lnd"),
		lnd:      lnd,
		client:   lnd.Client,
		invoices: lnd.Invoices,
		memo:     memo,
	}, nil
}

// Alias returns the alias of the connected node.
func (g *LndGateway) Alias(ctx context.Context) (string, error) {
	info, err := g.client.GetInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	return info.Alias, nil
}

// Close closes the connection to lnd.
func (g *LndGateway) Close() {
	g.lnd.Close()
}

// CreateInvoice implements Gateway.CreateInvoice.
func (g *LndGateway) CreateInvoice(ctx context.Context,
	amount lnwire.MilliSatoshi, descriptionHash [32]byte,
	expiry time.Duration) (*PendingInvoice, error) {

	hash, pr, err := g.client.AddInvoice(ctx, &invoicesrpc.AddInvoiceData{
		Memo:            g.memo,
		Value:           amount,
		DescriptionHash: descriptionHash[:],
		Expiry:          int64(expiry.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	return &PendingInvoice{
		Hash:            hash,
		PaymentRequest:  pr,
		DescriptionHash: descriptionHash,
		Amount:          amount,
		CreatedAt:       time.Now(),
	}, nil
}

// SubscribeSettlement implements Gateway.SubscribeSettlement.
func (g *LndGateway) SubscribeSettlement(ctx context.Context,
	hash lntypes.Hash) (<-chan *SettlementUpdate, <-chan error, error) {

	updates, errChan, err := g.invoices.SubscribeSingleInvoice(ctx, hash)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable,
			err)
	}

	log := g.log.WithField("payment_hash", hash.String())
	out := make(chan *SettlementUpdate)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return

			case update, ok := <-updates:
				if !ok {
					return
				}

				log.WithField("state", update.State.String()).
					Debug("invoice update")

				res := &SettlementUpdate{
					Settled:    update.State == channeldb.ContractSettled,
					AmountPaid: lnwire.NewMSatFromSatoshis(update.AmtPaid),
				}

				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errChan, nil
}
