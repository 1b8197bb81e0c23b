package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ellemouton/lndboard/lnurl"
)

func TestResolveURL(t *testing.T) {
	offer := "https://board.example.com/payment-offer"

	encoded, err := lnurl.EncodeURL(offer)
	require.NoError(t, err)

	tests := []struct {
		name     string
		code     string
		protocol string
		expected string
	}{
		{
			name:     "bech32",
			code:     encoded,
			protocol: "https",
			expected: offer,
		},
		{
			name:     "lightning uri",
			code:     "lightning:" + encoded,
			protocol: "https",
			expected: offer,
		},
		{
			name:     "static",
			code:     "lnurlp://board.example.com/payment-offer",
			protocol: "http",
			expected: "http://board.example.com/payment-offer",
		},
		{
			name:     "lightning address",
			code:     "board@board.example.com",
			protocol: "https",
			expected: "https://board.example.com/.well-known/lnurlp/board",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			res, err := resolveURL(test.code, test.protocol)
			require.NoError(t, err)
			require.Equal(t, test.expected, res)
		})
	}

	_, err = resolveURL("https://board.example.com", "https")
	require.Error(t, err)

	_, err = resolveURL("a@b@c", "https")
	require.Error(t, err)
}

func TestHasPlainText(t *testing.T) {
	ok, err := hasPlainText(`[["text/plain","hi"],["text/identifier","a@b"]]`)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = hasPlainText(`[["text/identifier","a@b"]]`)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = hasPlainText(`not json`)
	require.Error(t, err)
}
