package lndboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ellemouton/lndboard/broadcast"
	"github.com/ellemouton/lndboard/comments"
	"github.com/ellemouton/lndboard/invoices"
	"github.com/ellemouton/lndboard/lnurl"
	"github.com/ellemouton/lndboard/settlement"
)

const (
	CommentsPath  = "/comments"
	WebsocketPath = "/ws"
	MetricsPath   = "/metrics"

	defaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	// ListenAddr is the host:port the HTTP server binds to.
	ListenAddr string

	Offer *lnurl.OfferConfig

	// InvoiceTTL is the invoice expiry and how long a settlement is
	// waited for.
	InvoiceTTL time.Duration

	// CallbackRate is the number of callbacks per second allowed from a
	// single client IP, with bursts of up to CallbackBurst. Zero disables
	// rate limiting.
	CallbackRate  rate.Limit
	CallbackBurst int

	// FeedWindow is the number of comments served by the feed.
	FeedWindow int

	ShutdownTimeout time.Duration
}

type Server struct {
	cfg *Config
	log *logrus.Entry

	echo       *echo.Echo
	store      comments.Store
	feed       *comments.Feed
	hub        *broadcast.Hub
	validator  *lnurl.Validator
	correlator *settlement.Correlator
	offer      *lnurl.PayResponse
}

func NewServer(cfg *Config, gateway invoices.Gateway,
	store comments.Store) (*Server, error) {

	if err := cfg.Offer.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid offer config")
	}

	if cfg.FeedWindow == 0 {
		cfg.FeedWindow = comments.DefaultWindow
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		cfg:       cfg,
		log:       logrus.StandardLogger().WithField("type", "lndboard/server"),
		store:     store,
		feed:      comments.NewFeed(cfg.FeedWindow),
		validator: lnurl.NewValidator(cfg.Offer),
		offer:     lnurl.BuildOffer(cfg.Offer),
		hub: broadcast.NewHub(broadcast.WithPresenceHook(func(count int) {
			liveSubscribers.Set(float64(count))
		})),
	}

	s.correlator = settlement.NewCorrelator(&settlement.Config{
		Gateway:    gateway,
		Store:      store,
		Feed:       s.feed,
		Hub:        s.hub,
		Metadata:   s.offer.Metadata,
		InvoiceTTL: cfg.InvoiceTTL,
	})

	s.echo = s.newEcho()

	return s, nil
}

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogValuesFunc: func(c echo.Context,
			v middleware.RequestLoggerValues) error {

			s.log.WithFields(logrus.Fields{
				"method":    v.Method,
				"path":      v.URIPath,
				"status":    v.Status,
				"remote_ip": v.RemoteIP,
				"latency":   v.Latency,
			}).Debug("handled request")

			return nil
		},
	}))
	e.Use(middleware.Recover())

	var callbackMiddleware []echo.MiddlewareFunc
	if s.cfg.CallbackRate > 0 {
		callbackMiddleware = append(callbackMiddleware, s.rateLimiter())
	}

	e.GET(lnurl.OfferPath, s.handleOffer)
	e.GET(lnurl.LightningAddressPath+":username", s.handleLightningAddress)
	e.GET(lnurl.CallbackPath, s.handleCallback, callbackMiddleware...)
	e.GET(CommentsPath, s.handleComments)
	e.GET(WebsocketPath, s.handleWebsocket)
	e.GET(MetricsPath, echo.WrapHandler(promhttp.Handler()))

	return e
}

func (s *Server) rateLimiter() echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      s.cfg.CallbackRate,
			Burst:     s.cfg.CallbackBurst,
			ExpiresIn: 3 * time.Minute,
		},
	)

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden,
				lnurl.NewError("unable to identify client"))
		},
		DenyHandler: func(c echo.Context, id string, err error) error {
			callbackRejections.WithLabelValues("RateLimited").Inc()
			s.log.WithField("remote_ip", id).Debug("callback rate limited")

			return c.JSON(http.StatusTooManyRequests,
				lnurl.NewError("too many requests, try again later"))
		},
	})
}

// Handler exposes the HTTP surface, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled or the listener fails. In-flight
// watchers are abandoned on the way out.
func (s *Server) Run(ctx context.Context) error {
	if err := s.printHello(); err != nil {
		return err
	}

	if err := s.feed.Seed(ctx, s.store); err != nil {
		return errors.Wrap(err, "could not load recent comments")
	}
	s.log.WithField("comments", s.feed.Len()).Info("feed loaded")

	errChan := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.ListenAddr).Info("listening")
		errChan <- s.echo.Start(s.cfg.ListenAddr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = errors.Wrap(err, "http server failed")
		}
	}

	s.Stop()

	return runErr
}

// Stop shuts the HTTP server down and abandons every pending invoice.
func (s *Server) Stop() {
	s.correlator.Stop()
	s.hub.Close()

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.WithError(err).Warn("failure shutting down http server")
	}
}

func (s *Server) printHello() error {
	offerURL := s.cfg.Offer.OfferURL()

	encoded, err := lnurl.EncodeURL(offerURL)
	if err != nil {
		return err
	}

	fmt.Printf(
		""+
			"=======================================\n"+
			"Welcome to LNDBOARD!\n"+
			"Pay to post a comment: \n"+
			"- %s\n"+
			"- lightning:%s\n"+
			"- %s\n",
		encoded, encoded, lnurl.StaticURL(offerURL),
	)

	if addr := s.cfg.Offer.LightningAddress(); addr != "" {
		fmt.Printf("- %s\n", addr)
	}

	fmt.Println("=======================================")

	return nil
}
