package service

import (
	"fmt"
	"testing"

	"drivingschool_backend/internals/configs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServerKey = "SB-Mid-server-test"

func midtransBody(status, code, fraud, sig string) []byte {
	if sig == "" {
		sig = MidtransSignature("REQ_3f2a9c1e_0123456789ab", code, "5000.00", testServerKey)
	}
	return []byte(fmt.Sprintf(`{
		"transaction_status": %q,
		"status_code": %q,
		"signature_key": %q,
		"order_id": "REQ_3f2a9c1e_0123456789ab",
		"gross_amount": "5000.00",
		"payment_type": "credit_card",
		"fraud_status": %q,
		"transaction_id": "9aed5972-5b6a-401e-894b-a32c91ed1a3a",
		"status_message": "midtrans payment notification"
	}`, status, code, sig, fraud))
}

func TestMidtransSignature(t *testing.T) {
	sig := MidtransSignature("order-1", "200", "10000.00", "key")
	assert.Len(t, sig, 128)
	assert.Equal(t, sig, MidtransSignature("order-1", "200", "10000.00", "key"))
	assert.NotEqual(t, sig, MidtransSignature("order-1", "200", "10000.01", "key"))
}

func TestMidtransParseCallback(t *testing.T) {
	g := NewMidtransGateway(configs.MidtransConfig{ServerKey: testServerKey})

	res, err := g.ParseCallback(midtransBody("settlement", "200", "", ""))
	require.NoError(t, err)
	assert.Equal(t, "midtrans", res.Gateway)
	assert.Equal(t, "REQ_3f2a9c1e_0123456789ab", res.CorrelationID)
	assert.True(t, res.Succeeded())
	assert.True(t, decimal.NewFromInt(5000).Equal(res.ConfirmedAmount))
	assert.Equal(t, "9aed5972-5b6a-401e-894b-a32c91ed1a3a", res.FinalReference)

	_, err = g.ParseCallback(midtransBody("settlement", "200", "", "deadbeef"))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = g.ParseCallback([]byte(`{`))
	assert.Error(t, err)
}

func TestMidtransStatusMapping(t *testing.T) {
	g := NewMidtransGateway(configs.MidtransConfig{ServerKey: testServerKey})

	cases := []struct {
		status, code, fraud string
		wantCode            int
		ignored             bool
	}{
		{status: "settlement", code: "200", wantCode: 0},
		{status: "capture", code: "200", fraud: "accept", wantCode: 0},
		{status: "capture", code: "200", fraud: "challenge", ignored: true},
		{status: "capture", code: "202", fraud: "deny", wantCode: 202},
		{status: "deny", code: "202", wantCode: 202},
		{status: "expire", code: "407", wantCode: 407},
		{status: "cancel", code: "200", wantCode: 200},
		{status: "failure", code: "0", wantCode: 1},
		{status: "pending", code: "201", ignored: true},
		{status: "refund", code: "200", ignored: true},
	}
	for _, tc := range cases {
		t.Run(tc.status+"/"+tc.fraud, func(t *testing.T) {
			res, err := g.ParseCallback(midtransBody(tc.status, tc.code, tc.fraud, ""))
			if tc.ignored {
				assert.ErrorIs(t, err, ErrCallbackIgnored)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantCode, res.ResultCode)
		})
	}
}
