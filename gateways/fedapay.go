package gateways

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// FedaPay transaction statuses seen on webhooks:
// pending, approved, declined, canceled, refunded, transferred.
const (
	fedaPaySandboxURL = "https://sandbox-api.fedapay.com/v1"
	fedaPayLiveURL    = "https://api.fedapay.com/v1"
)

// FedaPay is the redirect-based card/mobile gateway. The flow is
// create transaction -> generate token -> send the user to the token URL,
// then learn the outcome from the webhook.
type FedaPay struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

func NewFedaPay() *FedaPay {
	baseURL := fedaPaySandboxURL
	if os.Getenv("FEDAPAY_ENVIRONMENT") == "live" {
		baseURL = fedaPayLiveURL
	}
	return &FedaPay{
		secretKey:     os.Getenv("FEDAPAY_SECRET_KEY"),
		webhookSecret: os.Getenv("FEDAPAY_WEBHOOK_SECRET"),
		baseURL:       baseURL,
		client:        newHTTPClient(),
	}
}

func (g *FedaPay) Name() string { return "fedapay" }

type fedaPayTransaction struct {
	V1 struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	} `json:"v1"`
}

type fedaPayToken struct {
	V1 struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	} `json:"v1"`
}

func (g *FedaPay) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if err := ensureIntegralAmount(g.Name(), req.Amount); err != nil {
		return nil, err
	}

	customer := map[string]interface{}{
		"email":     req.Customer.Email,
		"firstname": req.Customer.FirstName,
		"lastname":  req.Customer.LastName,
	}
	if req.Customer.Phone != "" {
		customer["phone_number"] = map[string]string{"number": req.Customer.Phone}
	}

	payload := map[string]interface{}{
		"description": req.Description,
		"amount":      req.Amount.IntPart(),
		"currency":    map[string]string{"iso": req.Currency},
		"customer":    customer,
	}
	// callback_url redirects the user's browser after payment; the webhook
	// URL is configured provider-side and must not be set here.
	if req.ReturnURL != "" {
		payload["callback_url"] = req.ReturnURL
	}
	metadata := map[string]string{"payment_reference": req.Reference}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	payload["metadata"] = metadata

	raw, err := g.post(ctx, "/transactions", payload)
	if err != nil {
		return nil, err
	}

	var txn fedaPayTransaction
	if err := json.Unmarshal(raw, &txn); err != nil {
		return nil, &GatewayError{Provider: g.Name(), Code: "bad_response", Message: "unparseable transaction response", Err: err}
	}
	txnID := txn.V1.ID.String()
	if txnID == "" {
		return nil, &GatewayError{Provider: g.Name(), Code: "bad_response", Message: "transaction response missing id"}
	}

	tokenRaw, err := g.post(ctx, "/transactions/"+txnID+"/token", nil)
	if err != nil {
		return nil, err
	}
	var token fedaPayToken
	if err := json.Unmarshal(tokenRaw, &token); err != nil {
		return nil, &GatewayError{Provider: g.Name(), Code: "bad_response", Message: "unparseable token response", Err: err}
	}

	return &InitiateResult{
		ProviderReference: txnID,
		PaymentURL:        token.V1.URL,
		Instructions:      "Vous allez etre redirige vers la page de paiement FedaPay.",
		Raw:               raw,
	}, nil
}

func (g *FedaPay) CheckStatus(ctx context.Context, providerRef string) (string, json.RawMessage, error) {
	raw, err := g.get(ctx, "/transactions/"+providerRef)
	if err != nil {
		return "", nil, err
	}
	var txn fedaPayTransaction
	if err := json.Unmarshal(raw, &txn); err != nil {
		return "", nil, &GatewayError{Provider: g.Name(), Code: "bad_response", Message: "unparseable transaction response", Err: err}
	}
	return txn.V1.Status, raw, nil
}

// VerifySignature checks the X-FEDAPAY-SIGNATURE header against the raw
// webhook body. Returns true when no secret is configured so dev setups
// keep working; callers log that condition.
func (g *FedaPay) VerifySignature(body []byte, signature string) bool {
	if g.webhookSecret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignatureConfigured reports whether webhook verification is active.
func (g *FedaPay) SignatureConfigured() bool { return g.webhookSecret != "" }

func (g *FedaPay) post(ctx context.Context, path string, payload interface{}) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &GatewayError{Provider: g.Name(), Code: "encode", Message: "could not encode request", Err: err}
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, body)
	if err != nil {
		return nil, &GatewayError{Provider: g.Name(), Code: "request", Message: "could not build request", Err: err}
	}
	return g.do(req)
}

func (g *FedaPay) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, &GatewayError{Provider: g.Name(), Code: "request", Message: "could not build request", Err: err}
	}
	return g.do(req)
}

func (g *FedaPay) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, wrapTransportError(g.Name(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransportError(g.Name(), err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &GatewayError{
			Provider: g.Name(),
			Code:     fmt.Sprintf("http_%d", resp.StatusCode),
			Message:  string(raw),
		}
	}
	return raw, nil
}
