package lnurl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/stretchr/testify/require"
)

func testOfferConfig() *OfferConfig {
	return &OfferConfig{
		BaseURL:     "https://board.example.com",
		MinSendable: 1000,
		MaxSendable: 100_000_000,
		Description: "Post a comment to the board",
	}
}

func TestValidateAmount(t *testing.T) {
	v := NewValidator(testOfferConfig())

	tests := []struct {
		name   string
		amount string
		kind   ValidationErrorKind
	}{
		{name: "missing", amount: "", kind: InvalidAmount},
		{name: "not a number", amount: "ten", kind: InvalidAmount},
		{name: "negative", amount: "-1000", kind: InvalidAmount},
		{name: "fraction", amount: "1000.5", kind: InvalidAmount},
		{name: "below min", amount: "999", kind: AmountOutOfRange},
		{name: "zero", amount: "0", kind: AmountOutOfRange},
		{name: "above max", amount: "100000001", kind: AmountOutOfRange},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			params := url.Values{}
			if test.amount != "" {
				params.Set("amount", test.amount)
			}
			params.Set("comment", "hello")

			_, err := v.Validate(params)
			require.Error(t, err)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Equal(t, test.kind, vErr.Kind)
			require.Contains(t, vErr.Reason, "amount")
		})
	}
}

func TestValidateComment(t *testing.T) {
	v := NewValidator(testOfferConfig())

	tests := []struct {
		name    string
		comment string
		kind    ValidationErrorKind
	}{
		{name: "missing", comment: "", kind: MissingComment},
		{
			name:    "too long",
			comment: strings.Repeat("a", CommentMaxLength+1),
			kind:    CommentTooLong,
		},
		{
			name:    "too many runes",
			comment: strings.Repeat("⚡", CommentMaxLength+1),
			kind:    CommentTooLong,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			params := url.Values{}
			params.Set("amount", "10000")
			if test.comment != "" {
				params.Set("comment", test.comment)
			}

			_, err := v.Validate(params)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Equal(t, test.kind, vErr.Kind)
			require.Contains(t, vErr.Reason, "comment")
		})
	}
}

func TestValidateOrder(t *testing.T) {
	v := NewValidator(testOfferConfig())

	// Both amount and comment are wrong, amount is reported first.
	params := url.Values{}
	params.Set("amount", "1")

	_, err := v.Validate(params)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, AmountOutOfRange, vErr.Kind)
}

func TestValidateSuccess(t *testing.T) {
	v := NewValidator(testOfferConfig())

	// A comment exactly at the limit, in multi-byte characters.
	comment := strings.Repeat("⚡", CommentMaxLength)

	params := url.Values{}
	params.Set("amount", "10000")
	params.Set("comment", comment)

	cb, err := v.Validate(params)
	require.NoError(t, err)
	require.Equal(t, lnwire.MilliSatoshi(10000), cb.Amount)
	require.Equal(t, comment, cb.Comment)
	require.Nil(t, cb.PayerData)
	require.Empty(t, cb.RawPayerData)
	require.Empty(t, cb.DisplayName())
	require.False(t, cb.CreatedAt.IsZero())
}

func TestValidatePayerData(t *testing.T) {
	cfg := testOfferConfig()
	cfg.PayerData = &PayerDataSchema{
		Name:  &PayerDataField{Mandatory: false},
		Email: &PayerDataField{Mandatory: false},
	}
	v := NewValidator(cfg)

	params := func(payerData string) url.Values {
		p := url.Values{}
		p.Set("amount", "10000")
		p.Set("comment", "hello")
		if payerData != "" {
			p.Set("payerdata", payerData)
		}
		return p
	}

	t.Run("absent", func(t *testing.T) {
		cb, err := v.Validate(params(""))
		require.NoError(t, err)
		require.Nil(t, cb.PayerData)
	})

	t.Run("name", func(t *testing.T) {
		raw := `{"name":"satoshi"}`
		cb, err := v.Validate(params(raw))
		require.NoError(t, err)
		require.Equal(t, "satoshi", cb.DisplayName())
		require.Equal(t, raw, cb.RawPayerData)
	})

	t.Run("undeclared fields are ignored", func(t *testing.T) {
		cb, err := v.Validate(params(`{"name":"a","identifier":"x@y.z"}`))
		require.NoError(t, err)
		require.Equal(t, "a", cb.PayerData.Name)
		require.Empty(t, cb.PayerData.Identifier)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := v.Validate(params(`{"name":`))

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Equal(t, InvalidPayerData, vErr.Kind)
	})

	t.Run("bad email", func(t *testing.T) {
		_, err := v.Validate(params(`{"email":"not an email"}`))

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Equal(t, InvalidPayerData, vErr.Kind)
	})

	t.Run("name too long", func(t *testing.T) {
		name := strings.Repeat("n", PayerNameMaxLength+1)
		_, err := v.Validate(params(fmt.Sprintf(`{"name":"%s"}`, name)))

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Equal(t, InvalidPayerData, vErr.Kind)
	})
}

func TestValidateMandatoryPayerData(t *testing.T) {
	cfg := testOfferConfig()
	cfg.PayerData = &PayerDataSchema{
		Name: &PayerDataField{Mandatory: true},
	}
	v := NewValidator(cfg)

	p := url.Values{}
	p.Set("amount", "10000")
	p.Set("comment", "hello")

	_, err := v.Validate(p)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, InvalidPayerData, vErr.Kind)

	p.Set("payerdata", `{"email":"a@b.c"}`)
	_, err = v.Validate(p)
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Reason, "name")

	p.Set("payerdata", `{"name":"alice"}`)
	cb, err := v.Validate(p)
	require.NoError(t, err)
	require.Equal(t, "alice", cb.DisplayName())
}

func TestValidatePayerDataNotAccepted(t *testing.T) {
	v := NewValidator(testOfferConfig())

	p := url.Values{}
	p.Set("amount", "10000")
	p.Set("comment", "hello")
	p.Set("payerdata", `{"name":"alice"}`)

	_, err := v.Validate(p)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, InvalidPayerData, vErr.Kind)
}

func TestPayerAuth(t *testing.T) {
	k1 := sha256.Sum256([]byte("k1"))
	k1Hex := hex.EncodeToString(k1[:])

	schema := &PayerDataSchema{
		Auth: &PayerAuthField{Mandatory: true, K1: k1Hex},
	}

	priv, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)

	sig, err := priv.Sign(k1[:])
	require.NoError(t, err)

	key := hex.EncodeToString(priv.PubKey().SerializeCompressed())
	sigHex := hex.EncodeToString(sig.Serialize())

	raw := fmt.Sprintf(`{"auth":{"key":"%s","k1":"%s","sig":"%s"}}`,
		key, k1Hex, sigHex)
	data, err := ParsePayerData(raw, schema)
	require.NoError(t, err)
	require.Equal(t, key, data.Auth.Key)

	other := sha256.Sum256([]byte("other"))
	raw = fmt.Sprintf(`{"auth":{"key":"%s","k1":"%s","sig":"%s"}}`,
		key, hex.EncodeToString(other[:]), sigHex)
	_, err = ParsePayerData(raw, schema)
	require.Error(t, err)

	badSig, err := priv.Sign(other[:])
	require.NoError(t, err)
	raw = fmt.Sprintf(`{"auth":{"key":"%s","k1":"%s","sig":"%s"}}`,
		key, k1Hex, hex.EncodeToString(badSig.Serialize()))
	_, err = ParsePayerData(raw, schema)
	require.Error(t, err)

	_, err = ParsePayerData(`{}`, schema)
	require.Error(t, err)
}
