package lnurl

// CommentMaxLength is the longest comment, in characters, that the service
// accepts alongside a payment.
const CommentMaxLength = 144

type PayResponse struct {
	// Callback is the URL from LN SERVICE which will accept the pay request
	// parameters
	Callback string `json:"callback"`

	// MaxSendable is the max amount, in millisatoshis, LN SERVICE is
	// willing to receive
	MaxSendable int64 `json:"maxSendable"`

	// MinSendable is the min amount, in millisatoshis, LN SERVICE is
	// willing to receive, can not be less than 1 or more than
	// `maxSendable`
	MinSendable int64 `json:"minSendable"`

	// Metadata json which must be presented as raw string here, this is
	// required to pass signature verification at a later step.
	Metadata string `json:"metadata"`

	// CommentAllowed is the number of characters accepted for the
	// `comment` query parameter on the callback.
	CommentAllowed int `json:"commentAllowed"`

	// PayerData declares which payer identity fields may be attached to
	// the callback, and which of them are mandatory.
	PayerData *PayerDataSchema `json:"payerData,omitempty"`

	// Type of LNURL
	Tag Type `json:"tag"`
}

type InvoiceResponse struct {
	// PayRequest is a bech32-serialized lightning invoice.
	PayRequest string `json:"pr"`

	// SuccessAction is always null, the comment feed is the success
	// signal.
	SuccessAction *SuccessAction `json:"successAction"`

	// Disposable is false since the same offer may be paid many times.
	Disposable bool `json:"disposable"`

	// Routes an empty array.
	Routes []string `json:"routes"`
}

type SuccessAction struct {
	Tag     string `json:"tag"`
	Message string `json:"message,omitempty"`
}

type Type string

const (
	TypePayRequest Type = "payRequest"
)

const StatusError = "ERROR"

type Error struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// NewError returns the protocol error body for the given reason.
func NewError(reason string) *Error {
	return &Error{
		Status: StatusError,
		Reason: reason,
	}
}
