package lndboard

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/ellemouton/lndboard/comments/memory"
	"github.com/ellemouton/lndboard/invoices/mock"
	"github.com/ellemouton/lndboard/lnurl"
)

type testServer struct {
	*httptest.Server

	t       *testing.T
	server  *Server
	gateway *mock.Gateway
}

func newTestServer(t *testing.T, modify func(*Config)) *testServer {
	cfg := &Config{
		ListenAddr: "localhost:0",
		Offer: &lnurl.OfferConfig{
			BaseURL:     "https://board.example.com",
			MinSendable: 1_000,
			MaxSendable: 1_000_000,
			Description: "test board",
			Username:    "board",
		},
	}
	if modify != nil {
		modify(cfg)
	}

	gateway := mock.New()

	s, err := NewServer(cfg, gateway, memory.New())
	require.NoError(t, err)

	ts := &testServer{
		Server:  httptest.NewServer(s.Handler()),
		t:       t,
		server:  s,
		gateway: gateway,
	}
	t.Cleanup(func() {
		s.Stop()
		ts.Close()
	})

	return ts
}

func (ts *testServer) get(path string, out interface{}) int {
	ts.t.Helper()

	resp, err := http.Get(ts.URL + path)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)

	if out != nil {
		require.NoError(ts.t, json.Unmarshal(body, out), string(body))
	}

	return resp.StatusCode
}

func callbackPath(amount, comment string) string {
	params := url.Values{}
	if amount != "" {
		params.Set("amount", amount)
	}
	if comment != "" {
		params.Set("comment", comment)
	}

	return lnurl.CallbackPath + "?" + params.Encode()
}

func TestOffer(t *testing.T) {
	ts := newTestServer(t, nil)

	var offer lnurl.PayResponse
	require.Equal(t, http.StatusOK, ts.get(lnurl.OfferPath, &offer))

	require.Equal(t, lnurl.TypePayRequest, offer.Tag)
	require.Equal(t, "https://board.example.com/payment-offer/callback",
		offer.Callback)
	require.EqualValues(t, 1_000, offer.MinSendable)
	require.EqualValues(t, 1_000_000, offer.MaxSendable)
	require.Equal(t, lnurl.CommentMaxLength, offer.CommentAllowed)
	require.Equal(t, lnurl.Metadata(ts.server.cfg.Offer), offer.Metadata)
}

func TestLightningAddress(t *testing.T) {
	ts := newTestServer(t, nil)

	var offer lnurl.PayResponse
	require.Equal(t, http.StatusOK,
		ts.get(lnurl.LightningAddressPath+"board", &offer))
	require.Contains(t, offer.Metadata, "board@board.example.com")

	var lnErr lnurl.Error
	require.Equal(t, http.StatusNotFound,
		ts.get(lnurl.LightningAddressPath+"someone", &lnErr))
	require.Equal(t, lnurl.StatusError, lnErr.Status)
}

func TestCallbackValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name    string
		path    string
		keyword string
	}{
		{
			name:    "missing amount",
			path:    callbackPath("", "hi"),
			keyword: "amount",
		},
		{
			name:    "amount out of range",
			path:    callbackPath("10", "hi"),
			keyword: "amount",
		},
		{
			name:    "missing comment",
			path:    callbackPath("2000", ""),
			keyword: "comment",
		},
		{
			name:    "comment too long",
			path:    callbackPath("2000", strings.Repeat("a", 145)),
			keyword: "comment",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var lnErr lnurl.Error
			require.Equal(t, http.StatusBadRequest,
				ts.get(test.path, &lnErr))
			require.Equal(t, lnurl.StatusError, lnErr.Status)
			require.Contains(t, lnErr.Reason, test.keyword)
		})
	}

	require.Empty(t, ts.gateway.Invoices())
}

func TestCallbackUpstreamFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.gateway.FailCreate(errors.New("lnd is down"))

	var lnErr lnurl.Error
	require.Equal(t, http.StatusBadGateway,
		ts.get(callbackPath("2000", "hi"), &lnErr))
	require.Equal(t, lnurl.StatusError, lnErr.Status)
	require.Empty(t, ts.server.correlator.Pending())
}

func TestPayToPost(t *testing.T) {
	ts := newTestServer(t, nil)

	var raw map[string]json.RawMessage
	require.Equal(t, http.StatusOK,
		ts.get(callbackPath("2000", "first post"), &raw))
	require.Equal(t, "null", string(raw["successAction"]))
	require.Equal(t, "[]", string(raw["routes"]))
	require.Equal(t, "false", string(raw["disposable"]))

	var resp lnurl.InvoiceResponse
	require.Equal(t, http.StatusOK,
		ts.get(callbackPath("2000", "first post"), &resp))
	require.NotEmpty(t, resp.PayRequest)

	created := ts.gateway.Invoices()
	require.Len(t, created, 2)
	require.Equal(t, resp.PayRequest, created[1].PaymentRequest)
	require.Equal(t,
		lnurl.DescriptionHash(ts.server.offer.Metadata, ""),
		created[1].DescriptionHash,
	)

	// Nothing is posted until payment.
	var feed commentsResponse
	require.Equal(t, http.StatusOK, ts.get(CommentsPath, &feed))
	require.Empty(t, feed.Messages)

	require.NoError(t, ts.gateway.Settle(created[1].Hash))

	require.Eventually(t, func() bool {
		var feed commentsResponse
		ts.get(CommentsPath, &feed)
		return len(feed.Messages) == 1 &&
			feed.Messages[0].Text == "first post"
	}, 2*time.Second, 10*time.Millisecond)

	// The unpaid invoice is still being watched.
	require.Eventually(t, func() bool {
		return len(ts.server.correlator.Pending()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCallbackRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) {
		cfg.CallbackRate = 1
		cfg.CallbackBurst = 1
	})

	require.Equal(t, http.StatusBadRequest,
		ts.get(callbackPath("", "hi"), nil))

	var lnErr lnurl.Error
	require.Equal(t, http.StatusTooManyRequests,
		ts.get(callbackPath("", "hi"), &lnErr))
	require.Equal(t, lnurl.StatusError, lnErr.Status)
}

type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn) *wireEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var e wireEvent
	require.NoError(t, conn.ReadJSON(&e))

	return &e
}

func TestWebsocketFeed(t *testing.T) {
	ts := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + WebsocketPath

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	e := readEvent(t, conn)
	require.Equal(t, "NUM_USERS", e.Type)
	require.Equal(t, "1", string(e.Data))

	other, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	e = readEvent(t, conn)
	require.Equal(t, "NUM_USERS", e.Type)
	require.Equal(t, "2", string(e.Data))

	require.NoError(t, other.Close())

	e = readEvent(t, conn)
	require.Equal(t, "NUM_USERS", e.Type)
	require.Equal(t, "1", string(e.Data))

	var resp lnurl.InvoiceResponse
	require.Equal(t, http.StatusOK,
		ts.get(callbackPath("5000", "live"), &resp))
	require.NoError(t, ts.gateway.Settle(ts.gateway.Invoices()[0].Hash))

	e = readEvent(t, conn)
	require.Equal(t, "MESSAGE", e.Type)

	var posted struct {
		Id   uint64 `json:"id"`
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(e.Data, &posted))
	require.Equal(t, "live", posted.Text)
	require.EqualValues(t, 1, posted.Id)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.get(callbackPath("", "hi"), nil)

	resp, err := http.Get(ts.URL + MetricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "lndboard_callback_rejections_total")
}
