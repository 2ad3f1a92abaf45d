package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"drivingschool_backend/internals/configs"
	"drivingschool_backend/internals/features/finance/payments/model"
	helper "drivingschool_backend/internals/helpers"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

const (
	mpesaTokenPath   = "/oauth/v1/generate?grant_type=client_credentials"
	mpesaSTKPushPath = "/mpesa/stkpush/v1/processrequest"
	// Daraja caps AccountReference at 12 characters.
	mpesaAccountRefMax = 12
)

var eat = func() *time.Location {
	if loc, err := time.LoadLocation("Africa/Nairobi"); err == nil {
		return loc
	}
	return time.FixedZone("EAT", 3*3600)
}()

// MpesaGateway talks to Safaricom Daraja (Lipa na M-Pesa Online / STK push).
type MpesaGateway struct {
	Cfg  configs.MpesaConfig
	HTTP *http.Client
	Now  func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewMpesaGateway(cfg configs.MpesaConfig) *MpesaGateway {
	return &MpesaGateway{
		Cfg:  cfg,
		HTTP: &http.Client{Timeout: 30 * time.Second},
		Now:  time.Now,
	}
}

func (g *MpesaGateway) Name() string { return model.GatewayMpesa }

type mpesaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type mpesaSTKRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type mpesaSTKResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// STKPassword is base64(shortcode + passkey + timestamp).
func STKPassword(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

func (g *MpesaGateway) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *MpesaGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token != "" && g.now().Before(g.tokenExp) {
		return g.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.Cfg.BaseURL+mpesaTokenPath, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.Cfg.ConsumerKey, g.Cfg.ConsumerSecret)

	var out mpesaTokenResponse
	if err := g.do(req, &out); err != nil {
		return "", fmt.Errorf("mpesa oauth: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("mpesa oauth: empty access token")
	}
	ttl, _ := strconv.Atoi(out.ExpiresIn)
	if ttl <= 0 {
		ttl = 3599
	}
	g.token = out.AccessToken
	g.tokenExp = g.now().Add(time.Duration(ttl-60) * time.Second)
	return g.token, nil
}

func (g *MpesaGateway) callbackURL() string {
	if g.Cfg.CallbackToken == "" {
		return g.Cfg.CallbackURL
	}
	u, err := url.Parse(g.Cfg.CallbackURL)
	if err != nil {
		return g.Cfg.CallbackURL
	}
	q := u.Query()
	q.Set("token", g.Cfg.CallbackToken)
	u.RawQuery = q.Encode()
	return u.String()
}

// Initiate sends an STK push. Daraja only accepts whole shillings.
func (g *MpesaGateway) Initiate(ctx context.Context, in GatewayRequest) (*GatewayResponse, error) {
	if !helper.IsKenyanPhone(in.Phone) {
		return nil, fmt.Errorf("mpesa: invalid phone %q", in.Phone)
	}
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := g.now().In(eat).Format("20060102150405")
	phone := helper.NormalizeKenyanPhone(in.Phone)
	ref := in.Reference
	if len(ref) > mpesaAccountRefMax {
		ref = ref[:mpesaAccountRefMax]
	}
	desc := in.Description
	if desc == "" {
		desc = "Driving school fees"
	}

	body, err := sonic.Marshal(mpesaSTKRequest{
		BusinessShortCode: g.Cfg.ShortCode,
		Password:          STKPassword(g.Cfg.ShortCode, g.Cfg.PassKey, ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            in.Amount.Round(0).IntPart(),
		PartyA:            phone,
		PartyB:            g.Cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       g.callbackURL(),
		AccountReference:  ref,
		TransactionDesc:   desc,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Cfg.BaseURL+mpesaSTKPushPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var out mpesaSTKResponse
	if err := g.do(req, &out); err != nil {
		return nil, fmt.Errorf("mpesa stk push: %w", err)
	}
	if out.ResponseCode != "0" || out.CheckoutRequestID == "" {
		return nil, fmt.Errorf("mpesa stk push rejected: %s %s%s", out.ResponseCode, out.ResponseDescription, out.ErrorMessage)
	}

	return &GatewayResponse{
		CorrelationID: out.CheckoutRequestID,
		Meta: map[string]any{
			"merchant_request_id": out.MerchantRequestID,
			"customer_message":    out.CustomerMessage,
		},
	}, nil
}

func (g *MpesaGateway) do(req *http.Request, out any) error {
	client := g.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return sonic.Unmarshal(raw, out)
}

/* ===================== Callback ===================== */

type mpesaCallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

type mpesaCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []mpesaCallbackItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes a Daraja stkCallback envelope.
func (g *MpesaGateway) ParseCallback(body []byte) (CallbackResult, error) {
	var cb mpesaCallback
	if err := sonic.Unmarshal(body, &cb); err != nil {
		return CallbackResult{}, fmt.Errorf("mpesa callback: %w", err)
	}
	stk := cb.Body.StkCallback
	if stk.CheckoutRequestID == "" {
		return CallbackResult{}, errors.New("mpesa callback: missing CheckoutRequestID")
	}

	res := CallbackResult{
		Gateway:       model.GatewayMpesa,
		CorrelationID: stk.CheckoutRequestID,
		ResultCode:    stk.ResultCode,
		ResultDesc:    stk.ResultDesc,
	}
	if stk.CallbackMetadata != nil {
		for _, it := range stk.CallbackMetadata.Item {
			switch it.Name {
			case "Amount":
				res.ConfirmedAmount = decimalOf(it.Value)
			case "MpesaReceiptNumber":
				res.FinalReference = fmt.Sprint(it.Value)
			}
		}
	}

	var raw map[string]any
	if err := sonic.Unmarshal(body, &raw); err == nil {
		res.Raw = raw
	}
	return res, nil
}

func decimalOf(v any) decimal.Decimal {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t)
	case int64:
		return decimal.NewFromInt(t)
	case string:
		d, _ := decimal.NewFromString(t)
		return d
	}
	return decimal.Zero
}
