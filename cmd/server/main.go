package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lightninglabs/lndclient"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/ellemouton/lndboard"
	"github.com/ellemouton/lndboard/invoices"
	"github.com/ellemouton/lndboard/lnurl"
)

const envPrefix = "LNDBOARD_"

func env(name string) []string {
	return []string{envPrefix + name}
}

func main() {
	// A missing .env is fine, everything can come from flags.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fatal(errors.Wrap(err, "could not load .env"))
	}

	app := cli.NewApp()

	app.Name = "lndboard"
	app.Usage = "Pay-to-post comment board served over LNURL-pay"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "listen",
			Value:   "localhost:8080",
			Usage:   "address to serve http on",
			EnvVars: env("LISTEN"),
		},
		&cli.StringFlag{
			Name:    "baseurl",
			Value:   "http://localhost:8080",
			Usage:   "public url the service is reachable on",
			EnvVars: env("BASE_URL"),
		},
		&cli.Uint64Flag{
			Name:    "minsendable",
			Value:   1_000,
			Usage:   "smallest accepted payment, in millisatoshis",
			EnvVars: env("MIN_SENDABLE"),
		},
		&cli.Uint64Flag{
			Name:    "maxsendable",
			Value:   1_000_000_000,
			Usage:   "largest accepted payment, in millisatoshis",
			EnvVars: env("MAX_SENDABLE"),
		},
		&cli.StringFlag{
			Name:    "description",
			Value:   "Pay to post a comment",
			Usage:   "description shown by the payer's wallet",
			EnvVars: env("DESCRIPTION"),
		},
		&cli.StringFlag{
			Name:    "username",
			Usage:   "enables the lightning address <username>@<host>",
			EnvVars: env("USERNAME"),
		},
		&cli.StringFlag{
			Name:    "payername",
			Value:   "optional",
			Usage:   "whether payers may attach a display name: none, optional or mandatory",
			EnvVars: env("PAYER_NAME"),
		},
		&cli.BoolFlag{
			Name:    "payerauth",
			Usage:   "let payers prove control of a linking key",
			EnvVars: env("PAYER_AUTH"),
		},
		&cli.StringFlag{
			Name:    "payerauthk1",
			Usage:   "hex encoded k1 for payer auth, random if unset",
			EnvVars: env("PAYER_AUTH_K1"),
		},
		&cli.StringFlag{
			Name:    "lndaddr",
			Value:   "localhost:10009",
			Usage:   "lnd instance rpc address",
			EnvVars: env("LND_ADDR"),
		},
		&cli.StringFlag{
			Name:    "network",
			Value:   "regtest",
			Usage:   "the network lnd is running on",
			EnvVars: env("NETWORK"),
		},
		&cli.StringFlag{
			Name:    "macaroondir",
			Usage:   "path to lnd's macaroon dir",
			EnvVars: env("MACAROON_DIR"),
		},
		&cli.StringFlag{
			Name:    "tlspath",
			Usage:   "path to lnd's tls cert",
			EnvVars: env("TLS_PATH"),
		},
		&cli.StringFlag{
			Name:    "db",
			Value:   "memory",
			Usage:   "comment storage: memory, a postgres:// dsn or a sqlite file path",
			EnvVars: env("DB"),
		},
		&cli.DurationFlag{
			Name:    "invoicettl",
			Value:   time.Hour,
			Usage:   "invoice expiry, unpaid invoices are forgotten afterwards",
			EnvVars: env("INVOICE_TTL"),
		},
		&cli.Float64Flag{
			Name:    "callbackrate",
			Value:   1,
			Usage:   "callbacks per second allowed per client ip, 0 to disable",
			EnvVars: env("CALLBACK_RATE"),
		},
		&cli.IntFlag{
			Name:    "callbackburst",
			Value:   5,
			Usage:   "callbacks a client ip may burst to",
			EnvVars: env("CALLBACK_BURST"),
		},
		&cli.StringFlag{
			Name:    "loglevel",
			Value:   "info",
			Usage:   "log level: trace, debug, info, warn or error",
			EnvVars: env("LOG_LEVEL"),
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[lndboard] %v\n", err)
	os.Exit(1)
}

func run(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String("loglevel"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	log := logrus.StandardLogger().WithField("type", "cmd/server")

	offer, err := offerConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()

	store, closeStore, err := openStore(ctx, c.String("db"))
	if err != nil {
		return errors.Wrap(err, "could not open comment store")
	}
	defer closeStore()

	gateway, err := invoices.NewLndGateway(&invoices.LndConfig{
		LndAddr:     c.String("lndaddr"),
		Network:     lndclient.Network(c.String("network")),
		MacaroonDir: c.String("macaroondir"),
		TLSPath:     c.String("tlspath"),
	})
	if err != nil {
		return errors.Wrap(err, "could not connect to lnd")
	}
	defer gateway.Close()

	alias, err := gateway.Alias(ctx)
	if err != nil {
		return err
	}
	log.WithField("alias", alias).Info("connected to lnd")

	server, err := lndboard.NewServer(&lndboard.Config{
		ListenAddr:    c.String("listen"),
		Offer:         offer,
		InvoiceTTL:    c.Duration("invoicettl"),
		CallbackRate:  rate.Limit(c.Float64("callbackrate")),
		CallbackBurst: c.Int("callbackburst"),
	}, gateway, store)
	if err != nil {
		return err
	}

	return server.Run(ctx)
}

func offerConfig(c *cli.Context) (*lnurl.OfferConfig, error) {
	cfg := &lnurl.OfferConfig{
		BaseURL:     c.String("baseurl"),
		MinSendable: lnwire.MilliSatoshi(c.Uint64("minsendable")),
		MaxSendable: lnwire.MilliSatoshi(c.Uint64("maxsendable")),
		Description: c.String("description"),
		Username:    c.String("username"),
	}

	schema := &lnurl.PayerDataSchema{}
	switch c.String("payername") {
	case "none":
	case "optional":
		schema.Name = &lnurl.PayerDataField{}
	case "mandatory":
		schema.Name = &lnurl.PayerDataField{Mandatory: true}
	default:
		return nil, errors.Errorf("unknown payername setting %q",
			c.String("payername"))
	}

	if c.Bool("payerauth") {
		k1 := c.String("payerauthk1")
		if k1 == "" {
			var b [32]byte
			if _, err := rand.Read(b[:]); err != nil {
				return nil, err
			}
			k1 = hex.EncodeToString(b[:])
		}

		schema.Auth = &lnurl.PayerAuthField{K1: k1}
	}

	if schema.Name != nil || schema.Auth != nil {
		cfg.PayerData = schema
	}

	return cfg, cfg.Validate()
}
