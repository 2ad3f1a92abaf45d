package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"drivingschool_backend/internals/configs"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type darajaStub struct {
	srv         *httptest.Server
	tokenCalls  atomic.Int32
	pushCalls   atomic.Int32
	lastPush    mpesaSTKRequest
	pushReply   string
	pushStatus  int
	tokenExpiry string
}

func newDarajaStub(t *testing.T) *darajaStub {
	t.Helper()
	d := &darajaStub{
		pushStatus:  http.StatusOK,
		tokenExpiry: "3599",
		pushReply: `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925",` +
			`"ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing",` +
			`"CustomerMessage":"Success. Request accepted for processing"}`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		d.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ck" || pass != "cs" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		_, _ = io.WriteString(w, `{"access_token":"tok-1","expires_in":"`+d.tokenExpiry+`"}`)
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		d.pushCalls.Add(1)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, sonic.Unmarshal(raw, &d.lastPush))
		w.WriteHeader(d.pushStatus)
		_, _ = io.WriteString(w, d.pushReply)
	})
	d.srv = httptest.NewServer(mux)
	t.Cleanup(d.srv.Close)
	return d
}

func newTestMpesa(base string, now time.Time) *MpesaGateway {
	g := NewMpesaGateway(configs.MpesaConfig{
		BaseURL:        base,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		ShortCode:      "174379",
		PassKey:        "bfb279f9aa9bdbcf",
		CallbackURL:    "https://api.school.test/api/public/payments/callback/mpesa",
		CallbackToken:  "s3cret",
	})
	g.Now = func() time.Time { return now }
	return g
}

func TestMpesaInitiateSendsSTKPush(t *testing.T) {
	d := newDarajaStub(t)
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	g := newTestMpesa(d.srv.URL, now)

	resp, err := g.Initiate(context.Background(), GatewayRequest{
		Reference: "REQ_3f2a9c1e_0123456789ab",
		Phone:     "0712 345 678",
		Amount:    decimal.RequireFromString("1500.60"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", resp.CorrelationID)
	assert.Equal(t, "29115-34620561-1", resp.Meta["merchant_request_id"])

	p := d.lastPush
	assert.Equal(t, "20261016110000", p.Timestamp)
	assert.Equal(t, STKPassword("174379", "bfb279f9aa9bdbcf", "20261016110000"), p.Password)
	assert.Equal(t, "CustomerPayBillOnline", p.TransactionType)
	assert.Equal(t, int64(1501), p.Amount)
	assert.Equal(t, "254712345678", p.PhoneNumber)
	assert.Equal(t, "254712345678", p.PartyA)
	assert.Equal(t, "174379", p.PartyB)
	assert.Equal(t, "REQ_3f2a9c1e", p.AccountReference)

	cb, err := url.Parse(p.CallBackURL)
	require.NoError(t, err)
	assert.Equal(t, "/api/public/payments/callback/mpesa", cb.Path)
	assert.Equal(t, "s3cret", cb.Query().Get("token"))
}

func TestMpesaCachesAccessToken(t *testing.T) {
	d := newDarajaStub(t)
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	g := newTestMpesa(d.srv.URL, now)
	req := GatewayRequest{Reference: "REQ_1", Phone: "0712345678", Amount: decimal.NewFromInt(100)}

	for i := 0; i < 3; i++ {
		_, err := g.Initiate(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), d.tokenCalls.Load())
	assert.Equal(t, int32(3), d.pushCalls.Load())

	// refreshed a minute before Daraja's expiry
	g.Now = func() time.Time { return now.Add(3599*time.Second - 30*time.Second) }
	_, err := g.Initiate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), d.tokenCalls.Load())
}

func TestMpesaRejectedPush(t *testing.T) {
	d := newDarajaStub(t)
	d.pushStatus = http.StatusBadRequest
	d.pushReply = `{"requestId":"1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`
	g := newTestMpesa(d.srv.URL, time.Now())

	_, err := g.Initiate(context.Background(), GatewayRequest{Reference: "REQ_1", Phone: "0712345678", Amount: decimal.NewFromInt(100)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid PhoneNumber")

	d.pushStatus = http.StatusOK
	d.pushReply = `{"ResponseCode":"1","ResponseDescription":"Rejected"}`
	_, err = g.Initiate(context.Background(), GatewayRequest{Reference: "REQ_1", Phone: "0712345678", Amount: decimal.NewFromInt(100)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rejected")
}

func TestMpesaBadCredentials(t *testing.T) {
	d := newDarajaStub(t)
	g := newTestMpesa(d.srv.URL, time.Now())
	g.Cfg.ConsumerSecret = "wrong"

	_, err := g.Initiate(context.Background(), GatewayRequest{Reference: "REQ_1", Phone: "0712345678", Amount: decimal.NewFromInt(100)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mpesa oauth")
	assert.Zero(t, d.pushCalls.Load())
}

func TestMpesaInitiateHonoursContext(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)
	g := newTestMpesa(slow.URL, time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := g.Initiate(ctx, GatewayRequest{Reference: "REQ_1", Phone: "0712345678", Amount: decimal.NewFromInt(100)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

const darajaSuccessCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 1501.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "TransactionDate", "Value": 20261016110102},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`

func TestMpesaParseCallback(t *testing.T) {
	g := NewMpesaGateway(configs.MpesaConfig{})

	res, err := g.ParseCallback([]byte(darajaSuccessCallback))
	require.NoError(t, err)
	assert.Equal(t, "mpesa", res.Gateway)
	assert.Equal(t, "ws_CO_191220191020363925", res.CorrelationID)
	assert.True(t, res.Succeeded())
	assert.True(t, decimal.NewFromInt(1501).Equal(res.ConfirmedAmount))
	assert.Equal(t, "NLJ7RT61SV", res.FinalReference)
	assert.Contains(t, res.Raw, "Body")

	res, err = g.ParseCallback([]byte(`{"Body":{"stkCallback":{"MerchantRequestID":"1","CheckoutRequestID":"ws_CO_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`))
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
	assert.Equal(t, 1032, res.ResultCode)
	assert.True(t, res.ConfirmedAmount.IsZero())
	assert.Empty(t, res.FinalReference)

	_, err = g.ParseCallback([]byte(`{"Body":{}}`))
	assert.Error(t, err)
	_, err = g.ParseCallback([]byte(`not json`))
	assert.Error(t, err)
}
