package lndboard

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ellemouton/lndboard/comments"
	"github.com/ellemouton/lndboard/invoices"
	"github.com/ellemouton/lndboard/lnurl"
)

type commentsResponse struct {
	Messages []*comments.Comment `json:"messages"`
}

func (s *Server) handleOffer(c echo.Context) error {
	return c.JSON(http.StatusOK, s.offer)
}

// handleLightningAddress serves the offer for username@host. Only the
// configured username exists.
func (s *Server) handleLightningAddress(c echo.Context) error {
	username := c.Param("username")
	if s.cfg.Offer.Username == "" || username != s.cfg.Offer.Username {
		return c.JSON(http.StatusNotFound, lnurl.NewError("unknown user"))
	}

	return c.JSON(http.StatusOK, s.offer)
}

func (s *Server) handleCallback(c echo.Context) error {
	log := s.log.WithField("remote_ip", c.RealIP())

	cb, err := s.validator.Validate(c.QueryParams())
	if err != nil {
		var verr *lnurl.ValidationError
		if errors.As(err, &verr) {
			callbackRejections.WithLabelValues(verr.Kind.String()).Inc()
			log.WithField("kind", verr.Kind).Debug("callback rejected")

			return c.JSON(http.StatusBadRequest, lnurl.NewError(verr.Reason))
		}

		log.WithError(err).Error("failure validating callback")
		return c.JSON(http.StatusInternalServerError,
			lnurl.NewError("internal error"))
	}

	inv, err := s.correlator.Invoice(c.Request().Context(), cb)
	switch {
	case errors.Is(err, invoices.ErrUpstreamUnavailable):
		callbackRejections.WithLabelValues("UpstreamUnavailable").Inc()
		return c.JSON(http.StatusBadGateway,
			lnurl.NewError("unable to create invoice, try again later"))

	case err != nil:
		log.WithError(err).Error("failure creating invoice")
		return c.JSON(http.StatusInternalServerError,
			lnurl.NewError("internal error"))
	}

	return c.JSON(http.StatusOK, &lnurl.InvoiceResponse{
		PayRequest: inv.PaymentRequest,
		Disposable: false,
		Routes:     []string{},
	})
}

func (s *Server) handleComments(c echo.Context) error {
	return c.JSON(http.StatusOK, &commentsResponse{
		Messages: s.feed.Snapshot(),
	})
}
