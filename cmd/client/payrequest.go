package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/urfave/cli/v2"

	"github.com/ellemouton/lndboard/lnurl"
)

var payRequestCommand = &cli.Command{
	Name:        "pay",
	Usage:       "Pay to LNURL",
	Description: `Pay to a static LNURL, posting a comment with the payment`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "lnurl",
			Usage: "The LNURL or lightning address to pay to.",
		},
		&cli.Int64Flag{
			Name:  "amt",
			Usage: "The amt of millisats to pay",
		},
		&cli.StringFlag{
			Name:  "comment",
			Usage: "The comment to post.",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Name to post the comment under, if the service allows it",
		},
		&cli.Int64Flag{
			Name:  "maxfee",
			Usage: "max fee to pay for this payment (in millisats)",
			Value: 1000,
		},
		&cli.BoolFlag{
			Name:  "notls",
			Usage: "set to true to use http instead of https",
		},
	},
	Action: payToLNURL,
}

// resolveURL turns any of the supported LNURL forms into the URL of the
// offer.
func resolveURL(code, protocol string) (string, error) {
	switch {
	case strings.HasPrefix(strings.ToLower(code), "lnurl"),
		strings.HasPrefix(code, "lightning:"):

		u, err := lnurl.DecodeURL(code)
		if err != nil {
			return "", fmt.Errorf("error decoding LNURL: %w", err)
		}
		return u, nil

	case strings.HasPrefix(code, "lnurlp://"):
		return strings.Replace(code, "lnurlp", protocol, 1), nil

	case strings.Contains(code, "@"):
		// This is an LN Address:
		parts := strings.Split(code, "@")
		if len(parts) != 2 {
			return "", fmt.Errorf("invalid LN address. Expected" +
				"the form <username>@<domain>")
		}

		username, domain := parts[0], parts[1]
		return fmt.Sprintf("%s://%s%s%s", protocol, domain,
			lnurl.LightningAddressPath, username), nil

	default:
		return "", fmt.Errorf("unsupported scheme")
	}
}

// hasPlainText checks that metadata carries the mandatory text/plain entry.
func hasPlainText(metadata string) (bool, error) {
	var entries [][]string
	if err := json.Unmarshal([]byte(metadata), &entries); err != nil {
		return false, fmt.Errorf("invalid metadata: %w", err)
	}

	for _, e := range entries {
		if len(e) == 2 && e[0] == "text/plain" {
			return true, nil
		}
	}

	return false, nil
}

func payToLNURL(ctx *cli.Context) error {
	// LNURL must be specified.
	code := ctx.String("lnurl")
	if code == "" {
		return fmt.Errorf("missing '--lnurl' flag")
	}

	comment := ctx.String("comment")
	if comment == "" {
		return fmt.Errorf("missing '--comment' flag")
	}

	protocol := "https"
	if ctx.Bool("notls") {
		protocol = "http"
	}

	offerURL, err := resolveURL(code, protocol)
	if err != nil {
		return err
	}

	// Ensure that the url uses the tls if we have not set --notls
	if !ctx.Bool("notls") && !strings.HasPrefix(offerURL, "https") {
		return fmt.Errorf("url is not https")
	}

	// Make a GET request to the decoded LNURL.
	var payResp lnurl.PayResponse
	if err := get(offerURL, &payResp); err != nil {
		return err
	}

	ok, err := hasPlainText(payResp.Metadata)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("response metadata does not contain the " +
			"required 'text/plain' field")
	}

	if len([]rune(comment)) > payResp.CommentAllowed {
		return fmt.Errorf("comment is longer than the %d characters "+
			"allowed", payResp.CommentAllowed)
	}

	var rawPayerData string
	if name := ctx.String("name"); name != "" {
		if payResp.PayerData == nil || payResp.PayerData.Name == nil {
			return fmt.Errorf("service does not accept a name")
		}

		b, err := json.Marshal(&lnurl.PayerData{Name: name})
		if err != nil {
			return err
		}
		rawPayerData = string(b)
	}

	// Check if the user specified an amount in the original call. If they
	// did not or if the specified amount is not within the bounds specified
	// in the server response, ask the user to enter a valid amount.
	minSendable, maxSendable := payResp.MinSendable, payResp.MaxSendable
	millisats := ctx.Int64("amt")
	for millisats < minSendable || millisats > maxSendable {
		reader := bufio.NewReader(os.Stdin)
		fmt.Printf("Enter an amount (in millisatoshis) between "+
			"%d and %d\n", minSendable, maxSendable)

		userInput, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("could not read from console: %w",
				err)
		}
		userInput = strings.TrimSpace(userInput)

		millisats, err = strconv.ParseInt(userInput, 10, 64)
		if err != nil {
			fmt.Printf("error parsing input: %v", err)
			continue
		}

		if millisats < minSendable || millisats > maxSendable {
			fmt.Printf("Invalid amount. Expected an amount "+
				"between %d and %d, got %d\n", minSendable,
				maxSendable, millisats)
		}
	}

	params := url.Values{}
	params.Set("amount", strconv.FormatInt(millisats, 10))
	params.Set("comment", comment)
	if rawPayerData != "" {
		params.Set("payerdata", rawPayerData)
	}

	delim := "?"
	if strings.Contains(payResp.Callback, "?") {
		delim = "&"
	}

	getInvoice := payResp.Callback + delim + params.Encode()

	var invoice lnurl.InvoiceResponse
	if err := get(getInvoice, &invoice); err != nil {
		return err
	}

	netParams, err := chainParams(ctx.String("network"))
	if err != nil {
		return err
	}

	inv, err := zpay32.Decode(invoice.PayRequest, netParams)
	if err != nil {
		return err
	}

	if inv.MilliSat == nil || int64(*inv.MilliSat) != millisats {
		return fmt.Errorf("invoice amount does not match the requested " +
			"amount")
	}

	// Ensure that the invoice description hash matches the metadata
	// received before, and the payer data sent.
	hash := lnurl.DescriptionHash(payResp.Metadata, rawPayerData)
	if inv.DescriptionHash == nil ||
		!bytes.Equal(inv.DescriptionHash[:], hash[:]) {

		return fmt.Errorf("invalid invoice description hash")
	}

	lndClient, err := getLND(ctx)
	if err != nil {
		return fmt.Errorf("could not connect to LND: %w", err)
	}
	defer lndClient.Close()

	res := <-lndClient.Client.PayInvoice(
		ctx.Context, invoice.PayRequest,
		btcutil.Amount(ctx.Int64("maxfee")/1000), nil,
	)

	if res.Err != nil {
		return fmt.Errorf("could not pay invoice: %w", res.Err)
	}

	fmt.Printf("Successful payment! Preimage: %s\n", res.Preimage)

	return nil
}
