package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Moov Money statuses: PENDING, SUCCESSFUL, FAILED, CANCELLED.

// MoovMoney implements the USSD push flow. The user dials the prompt to
// approve; the outcome arrives over the webhook or a status poll.
type MoovMoney struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewMoovMoney() *MoovMoney {
	baseURL := os.Getenv("MOOV_MONEY_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.moov-africa.bj/v1"
	}
	return &MoovMoney{
		apiKey:  os.Getenv("MOOV_MONEY_API_KEY"),
		baseURL: baseURL,
		client:  newHTTPClient(),
	}
}

func (g *MoovMoney) Name() string { return "moov_money" }

func (g *MoovMoney) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if err := ensureIntegralAmount(g.Name(), req.Amount); err != nil {
		return nil, err
	}
	if req.Phone == "" {
		return nil, &GatewayError{Provider: g.Name(), Code: "missing_phone", Message: "phone number is required for mobile money"}
	}

	payload := map[string]interface{}{
		"amount":      req.Amount.IntPart(),
		"currency":    req.Currency,
		"phoneNumber": req.Phone,
		"externalRef": req.Reference,
		"description": req.Description,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &GatewayError{Provider: g.Name(), Code: "encode", Message: "could not encode request", Err: err}
	}

	raw, err := g.do(ctx, http.MethodPost, "/transactions/push", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var result struct {
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &GatewayError{Provider: g.Name(), Code: "bad_response", Message: "unparseable push response", Err: err}
	}
	if result.TransactionID == "" {
		return nil, &GatewayError{Provider: g.Name(), Code: "bad_response", Message: "push response missing transaction id"}
	}

	return &InitiateResult{
		ProviderReference: result.TransactionID,
		Instructions: fmt.Sprintf("Une demande de paiement a ete envoyee au %s. "+
			"Composez *155# pour valider le paiement.", req.Phone),
		Raw: raw,
	}, nil
}

func (g *MoovMoney) CheckStatus(ctx context.Context, providerRef string) (string, json.RawMessage, error) {
	raw, err := g.do(ctx, http.MethodGet, "/transactions/"+providerRef, nil)
	if err != nil {
		return "", nil, err
	}
	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return "", nil, &GatewayError{Provider: g.Name(), Code: "bad_response", Message: "unparseable status response", Err: err}
	}
	return status.Status, raw, nil
}

func (g *MoovMoney) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, &GatewayError{Provider: g.Name(), Code: "request", Message: "could not build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
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
