package lnurl

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/lightningnetwork/lnd/lnwire"
)

type ValidationErrorKind uint8

const (
	InvalidAmount ValidationErrorKind = iota + 1
	AmountOutOfRange
	MissingComment
	CommentTooLong
	InvalidPayerData
)

func (k ValidationErrorKind) String() string {
	switch k {
	case InvalidAmount:
		return "InvalidAmount"
	case AmountOutOfRange:
		return "AmountOutOfRange"
	case MissingComment:
		return "MissingComment"
	case CommentTooLong:
		return "CommentTooLong"
	case InvalidPayerData:
		return "InvalidPayerData"
	default:
		return "Unknown"
	}
}

// ValidationError is returned for callbacks the payer got wrong. Reason is
// safe to show to the payer as is.
type ValidationError struct {
	Kind   ValidationErrorKind
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErr(kind ValidationErrorKind, format string,
	args ...interface{}) *ValidationError {

	return &ValidationError{
		Kind:   kind,
		Reason: fmt.Sprintf(format, args...),
	}
}

// CallbackContext is a validated callback invocation, waiting to be bound to
// an invoice.
type CallbackContext struct {
	Amount  lnwire.MilliSatoshi
	Comment string

	// PayerData is nil when the payer attached none.
	PayerData *PayerData

	// RawPayerData is the payerdata parameter exactly as received, it is
	// part of the description hash.
	RawPayerData string

	CreatedAt time.Time
}

// DisplayName is the payer supplied name, or an empty string.
func (c *CallbackContext) DisplayName() string {
	if c.PayerData == nil {
		return ""
	}

	return c.PayerData.Name
}

// Validator checks callback parameters against an offer.
type Validator struct {
	cfg *OfferConfig
}

func NewValidator(cfg *OfferConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate parses the callback query parameters. Rules are checked in order
// and the first failure is returned as a *ValidationError.
func (v *Validator) Validate(params url.Values) (*CallbackContext, error) {
	amt := params.Get("amount")
	if amt == "" {
		return nil, validationErr(InvalidAmount,
			"expected 'amount' field")
	}

	milliSats, err := strconv.ParseUint(amt, 10, 64)
	if err != nil {
		return nil, validationErr(InvalidAmount,
			"'amount' must be a non-negative integer amount of "+
				"millisatoshis")
	}

	amount := lnwire.MilliSatoshi(milliSats)
	if amount < v.cfg.MinSendable || amount > v.cfg.MaxSendable {
		return nil, validationErr(AmountOutOfRange,
			"'amount' must be between %d and %d millisatoshis, got %d",
			v.cfg.MinSendable, v.cfg.MaxSendable, amount)
	}

	comment := params.Get("comment")
	if comment == "" {
		return nil, validationErr(MissingComment,
			"expected non-empty 'comment' field")
	}

	if utf8.RuneCountInString(comment) > CommentMaxLength {
		return nil, validationErr(CommentTooLong,
			"'comment' length must not exceed %d characters",
			CommentMaxLength)
	}

	res := &CallbackContext{
		Amount:    amount,
		Comment:   comment,
		CreatedAt: time.Now(),
	}

	raw, ok := params["payerdata"]
	switch {
	case ok && len(raw) > 0 && raw[0] != "":
		payerData, err := ParsePayerData(raw[0], v.cfg.PayerData)
		if err != nil {
			return nil, validationErr(InvalidPayerData,
				"invalid 'payerdata': %v", err)
		}

		res.PayerData = payerData
		res.RawPayerData = raw[0]

	case v.cfg.PayerData.HasMandatory():
		return nil, validationErr(InvalidPayerData,
			"expected 'payerdata' field")
	}

	return res, nil
}
