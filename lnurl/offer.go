package lnurl

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/pkg/errors"
)

const (
	OfferPath    = "/payment-offer"
	CallbackPath = OfferPath + "/callback"

	// LightningAddressPath is the LUD-16 prefix, the username follows it.
	LightningAddressPath = "/.well-known/lnurlp/"
)

// OfferConfig is the static configuration a PayResponse is built from.
type OfferConfig struct {
	// BaseURL is the public URL the service is reachable on, for example
	// https://board.example.com.
	BaseURL string

	MinSendable lnwire.MilliSatoshi
	MaxSendable lnwire.MilliSatoshi

	// Description is shown by the payer's wallet and committed to by every
	// invoice's description hash.
	Description string

	// Username enables the lightning address username@host when set.
	Username string

	// PayerData is the optional LUD-18 schema.
	PayerData *PayerDataSchema
}

func (c *OfferConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base url is required")
	}

	if !strings.HasPrefix(c.BaseURL, "http://") &&
		!strings.HasPrefix(c.BaseURL, "https://") {

		return errors.New("base url must be http or https")
	}

	if c.MinSendable < 1 {
		return errors.New("min sendable must be at least 1 msat")
	}

	if c.MaxSendable < c.MinSendable {
		return errors.New("max sendable must not be less than min " +
			"sendable")
	}

	if c.Description == "" {
		return errors.New("description is required")
	}

	return nil
}

// OfferURL is the URL wallets fetch the PayResponse from.
func (c *OfferConfig) OfferURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + OfferPath
}

// CallbackURL is the URL wallets request invoices from.
func (c *OfferConfig) CallbackURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + CallbackPath
}

// LightningAddress returns username@host, or an empty string if no username
// is configured.
func (c *OfferConfig) LightningAddress() string {
	if c.Username == "" {
		return ""
	}

	host := c.BaseURL
	for _, scheme := range []string{"https://", "http://"} {
		host = strings.TrimPrefix(host, scheme)
	}
	host = strings.SplitN(host, "/", 2)[0]

	return fmt.Sprintf("%s@%s", c.Username, host)
}

// Metadata returns the exact metadata string served in the offer. Its hash
// binds each invoice to this offer.
func Metadata(cfg *OfferConfig) string {
	entries := [][2]string{
		{"text/plain", cfg.Description},
	}

	if addr := cfg.LightningAddress(); addr != "" {
		entries = append(entries, [2]string{"text/identifier", addr})
	}

	// Marshalling a slice of string pairs can't fail.
	b, _ := json.Marshal(entries)

	return string(b)
}

// DescriptionHash is the hash an invoice for this offer must carry. When the
// payer attached payer data, the raw payload is hashed after the metadata so
// the invoice commits to what will be displayed.
func DescriptionHash(metadata, rawPayerData string) [32]byte {
	return sha256.Sum256([]byte(metadata + rawPayerData))
}

// BuildOffer produces the payRequest document for cfg.
func BuildOffer(cfg *OfferConfig) *PayResponse {
	return &PayResponse{
		Callback:       cfg.CallbackURL(),
		MinSendable:    int64(cfg.MinSendable),
		MaxSendable:    int64(cfg.MaxSendable),
		Metadata:       Metadata(cfg),
		CommentAllowed: CommentMaxLength,
		PayerData:      cfg.PayerData,
		Tag:            TypePayRequest,
	}
}
