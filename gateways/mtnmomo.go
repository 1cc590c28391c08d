package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/google/uuid"
)

// MTN MoMo collection statuses: PENDING, SUCCESSFUL, FAILED.
const (
	mtnSandboxURL = "https://sandbox.momodeveloper.mtn.com"
	mtnLiveURL    = "https://momodeveloper.mtn.com"
)

// MTNMoMo implements the request-to-pay flow: the user receives a prompt on
// their phone and the outcome arrives over the webhook (or a status poll).
type MTNMoMo struct {
	subscriptionKey string
	apiToken        string
	targetEnv       string
	baseURL         string
	client          *http.Client
}

func NewMTNMoMo() *MTNMoMo {
	baseURL := mtnSandboxURL
	targetEnv := "sandbox"
	if os.Getenv("MTN_MOMO_ENVIRONMENT") == "live" {
		baseURL = mtnLiveURL
		targetEnv = "mtnbenin"
	}
	return &MTNMoMo{
		subscriptionKey: os.Getenv("MTN_MOMO_SUBSCRIPTION_KEY"),
		apiToken:        os.Getenv("MTN_MOMO_API_TOKEN"),
		targetEnv:       targetEnv,
		baseURL:         baseURL,
		client:          newHTTPClient(),
	}
}

func (g *MTNMoMo) Name() string { return "mtn_momo" }

func (g *MTNMoMo) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if err := ensureIntegralAmount(g.Name(), req.Amount); err != nil {
		return nil, err
	}
	if req.Phone == "" {
		return nil, &GatewayError{Provider: g.Name(), Code: "missing_phone", Message: "phone number is required for mobile money"}
	}

	// The X-Reference-Id we generate is the provider-side transaction id;
	// webhooks and status polls refer back to it.
	referenceID := uuid.NewString()

	payload := map[string]interface{}{
		"amount":     req.Amount.String(),
		"currency":   req.Currency,
		"externalId": req.Reference,
		"payer": map[string]string{
			"partyIdType": "MSISDN",
			"partyId":     req.Phone,
		},
		"payerMessage": req.Description,
		"payeeNote":    "Location immobiliere LOKAHOME",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &GatewayError{Provider: g.Name(), Code: "encode", Message: "could not encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/collection/v1_0/requesttopay", bytes.NewReader(data))
	if err != nil {
		return nil, &GatewayError{Provider: g.Name(), Code: "request", Message: "could not build request", Err: err}
	}
	httpReq.Header.Set("X-Reference-Id", referenceID)
	g.setHeaders(httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, wrapTransportError(g.Name(), err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	// Request-to-pay replies 202 Accepted with an empty body.
	if resp.StatusCode != http.StatusAccepted {
		return nil, &GatewayError{
			Provider: g.Name(),
			Code:     fmt.Sprintf("http_%d", resp.StatusCode),
			Message:  string(body),
		}
	}

	raw, _ := json.Marshal(map[string]string{
		"referenceId": referenceID,
		"status":      "PENDING",
	})

	return &InitiateResult{
		ProviderReference: referenceID,
		Instructions: fmt.Sprintf("Une demande de paiement a ete envoyee au %s. "+
			"Veuillez valider le paiement sur votre telephone.", req.Phone),
		Raw: raw,
	}, nil
}

func (g *MTNMoMo) CheckStatus(ctx context.Context, providerRef string) (string, json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/collection/v1_0/requesttopay/"+providerRef, nil)
	if err != nil {
		return "", nil, &GatewayError{Provider: g.Name(), Code: "request", Message: "could not build request", Err: err}
	}
	g.setHeaders(httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", nil, wrapTransportError(g.Name(), err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, wrapTransportError(g.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil, &GatewayError{
			Provider: g.Name(),
			Code:     fmt.Sprintf("http_%d", resp.StatusCode),
			Message:  string(raw),
		}
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return "", nil, &GatewayError{Provider: g.Name(), Code: "bad_response", Message: "unparseable status response", Err: err}
	}
	return status.Status, raw, nil
}

func (g *MTNMoMo) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+g.apiToken)
	req.Header.Set("Ocp-Apim-Subscription-Key", g.subscriptionKey)
	req.Header.Set("X-Target-Environment", g.targetEnv)
	req.Header.Set("Content-Type", "application/json")
}
