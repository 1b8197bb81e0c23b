package lnurl

import (
	"crypto/sha256"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildOffer(t *testing.T) {
	cfg := testOfferConfig()
	require.NoError(t, cfg.Validate())

	offer := BuildOffer(cfg)
	require.Equal(t, TypePayRequest, offer.Tag)
	require.Equal(t, "https://board.example.com/payment-offer/callback",
		offer.Callback)
	require.EqualValues(t, 1000, offer.MinSendable)
	require.EqualValues(t, 100_000_000, offer.MaxSendable)
	require.Equal(t, CommentMaxLength, offer.CommentAllowed)
	require.Nil(t, offer.PayerData)

	var entries [][2]string
	require.NoError(t, json.Unmarshal([]byte(offer.Metadata), &entries))
	require.Equal(t, [][2]string{
		{"text/plain", "Post a comment to the board"},
	}, entries)

	// Building twice gives the same document.
	require.Equal(t, offer, BuildOffer(cfg))

	b, err := json.Marshal(offer)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &fields))
	require.Equal(t, "payRequest", fields["tag"])
	require.NotContains(t, fields, "payerData")
}

func TestOfferLightningAddress(t *testing.T) {
	cfg := testOfferConfig()
	cfg.BaseURL = "https://board.example.com/"
	cfg.Username = "board"

	require.Equal(t, "board@board.example.com", cfg.LightningAddress())
	require.Equal(t, "https://board.example.com/payment-offer",
		cfg.OfferURL())

	var entries [][2]string
	require.NoError(t, json.Unmarshal([]byte(Metadata(cfg)), &entries))
	require.Contains(t, entries,
		[2]string{"text/identifier", "board@board.example.com"})
}

func TestOfferConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*OfferConfig)
	}{
		{name: "no base url", modify: func(c *OfferConfig) { c.BaseURL = "" }},
		{name: "bad scheme", modify: func(c *OfferConfig) { c.BaseURL = "ftp://x" }},
		{name: "zero min", modify: func(c *OfferConfig) { c.MinSendable = 0 }},
		{name: "max below min", modify: func(c *OfferConfig) { c.MaxSendable = 1 }},
		{name: "no description", modify: func(c *OfferConfig) { c.Description = "" }},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			cfg := testOfferConfig()
			test.modify(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestDescriptionHash(t *testing.T) {
	meta := Metadata(testOfferConfig())

	require.Equal(t, sha256.Sum256([]byte(meta)), DescriptionHash(meta, ""))

	raw := `{"name":"alice"}`
	require.Equal(t, sha256.Sum256([]byte(meta+raw)),
		DescriptionHash(meta, raw))
	require.NotEqual(t, DescriptionHash(meta, ""), DescriptionHash(meta, raw))
}
