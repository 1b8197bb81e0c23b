package lnurl

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

const humanReadablePart = "lnurl"

// DecodeURL recovers the URL from a bech32 encoded LNURL. Upper and lower case
// encodings are both accepted, as is a "lightning:" prefix.
func DecodeURL(lnurl string) (string, error) {
	lnurl = strings.TrimPrefix(strings.ToLower(lnurl), "lightning:")

	// LNURLs are routinely longer than the 90 characters allowed by BIP-173.
	hrp, data, err := bech32.DecodeNoLimit(lnurl)
	if err != nil {
		return "", err
	}

	if hrp != humanReadablePart {
		return "", fmt.Errorf("incorrect hrp for LNURL. Expected "+
			"'%s', got '%s'", humanReadablePart, hrp)
	}

	data, err = bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// EncodeURL bech32 encodes url into an upper case LNURL, which is what QR
// encoders handle most compactly.
func EncodeURL(url string) (string, error) {
	converted, err := bech32.ConvertBits([]byte(url), 8, 5, true)
	if err != nil {
		return "", err
	}

	str, err := bech32.Encode(humanReadablePart, converted)
	if err != nil {
		return "", err
	}

	return strings.ToUpper(str), nil
}

// StaticURL returns the LUD-17 form of an https or http URL, for example
// lnurlp://host/path.
func StaticURL(url string) string {
	for _, scheme := range []string{"https", "http"} {
		if strings.HasPrefix(url, scheme+"://") {
			return strings.Replace(url, scheme, "lnurlp", 1)
		}
	}

	return url
}
