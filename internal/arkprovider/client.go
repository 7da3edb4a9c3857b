package arkprovider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arkwallet/arkwalletd/internal/ark"
	"github.com/arkwallet/arkwalletd/pkg/helpers"
)

// HTTPClient implements ArkClient against an Ark server's REST/JSON API,
// spec.md §6.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient builds an HTTPClient for the given server base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

var _ ArkClient = (*HTTPClient)(nil)

func (c *HTTPClient) GetInfo(ctx context.Context) (*Info, error) {
	var result struct {
		Network                    string `json:"network"`
		PubKey                     string `json:"pubkey"`
		ForfeitAddress             string `json:"forfeitAddress"`
		MinRelayFeeRate            uint64 `json:"minRelayFeeRate,string"`
		UnilateralExitDelaySeconds uint32 `json:"unilateralExitDelay"`
		BoardingExitDelaySeconds   uint32 `json:"boardingExitDelay"`
		RoundInterval              uint32 `json:"roundInterval"`
	}
	if err := c.get(ctx, "/v1/info", &result); err != nil {
		return nil, err
	}
	return &Info{
		Network:                    result.Network,
		ServerPubKey:               result.PubKey,
		ForfeitAddress:             result.ForfeitAddress,
		MinRelayFeeRate:            result.MinRelayFeeRate,
		UnilateralExitDelaySeconds: result.UnilateralExitDelaySeconds,
		BoardingExitDelaySeconds:   result.BoardingExitDelaySeconds,
		RoundInterval:              result.RoundInterval,
	}, nil
}

func (c *HTTPClient) SubmitVirtualTx(ctx context.Context, psbtB64 string) (string, error) {
	var result struct {
		Txid string `json:"txid"`
	}
	body := map[string]string{"redeemTx": psbtB64}
	if err := c.post(ctx, "/v1/redeem-tx", body, &result); err != nil {
		return "", err
	}
	return result.Txid, nil
}

func (c *HTTPClient) RegisterInputsForNextRound(ctx context.Context, inputs []RegisterInput) (*RegisterInputsResult, error) {
	type wireInput struct {
		Note       string   `json:"note,omitempty"`
		Outpoint   string   `json:"outpoint,omitempty"`
		Tapscripts []string `json:"tapscripts,omitempty"`
	}

	wireInputs := make([]wireInput, len(inputs))
	for i, in := range inputs {
		if in.Note != "" {
			wireInputs[i] = wireInput{Note: in.Note}
			continue
		}
		wireInputs[i] = wireInput{Outpoint: in.Outpoint.String(), Tapscripts: in.Tapscripts}
	}

	var result struct {
		RequestID string `json:"requestId"`
	}
	if err := c.post(ctx, "/v1/round/registerInputs", map[string]interface{}{"inputs": wireInputs}, &result); err != nil {
		return nil, err
	}
	return &RegisterInputsResult{RequestID: result.RequestID}, nil
}

func (c *HTTPClient) RegisterOutputsForNextRound(ctx context.Context, requestID string, outputs []ark.SettlementOutput, cosignerPubKeys []string, signAll bool) error {
	type wireOutput struct {
		Script string `json:"script"`
		Amount uint64 `json:"amount,string"`
	}

	wireOutputs := make([]wireOutput, len(outputs))
	for i, o := range outputs {
		wireOutputs[i] = wireOutput{Script: fmt.Sprintf("%x", o.Script), Amount: o.Amount}
	}

	body := map[string]interface{}{
		"requestId":       requestID,
		"outputs":         wireOutputs,
		"cosignersPubkeys": cosignerPubKeys,
		"signingAll":      signAll,
	}
	return c.post(ctx, "/v1/round/registerOutputs", body, nil)
}

func (c *HTTPClient) SubmitTreeNonces(ctx context.Context, requestID string, cosignerPubKey string, nonces NonceMatrix) error {
	encoded, err := EncodeMatrix(nonces, NonceCellSize)
	if err != nil {
		return fmt.Errorf("arkprovider: encoding tree nonces: %w", err)
	}
	body := map[string]interface{}{
		"requestId":      requestID,
		"cosignerPubkey": cosignerPubKey,
		"treeNonces":     encoded,
	}
	return c.post(ctx, "/v1/round/tree/submitNonces", body, nil)
}

func (c *HTTPClient) SubmitTreeSignatures(ctx context.Context, requestID string, cosignerPubKey string, sigs SignatureMatrix) error {
	encoded, err := EncodeMatrix(sigs, SigCellSize)
	if err != nil {
		return fmt.Errorf("arkprovider: encoding tree signatures: %w", err)
	}
	body := map[string]interface{}{
		"requestId":      requestID,
		"cosignerPubkey": cosignerPubKey,
		"treeSignatures": encoded,
	}
	return c.post(ctx, "/v1/round/tree/submitSignatures", body, nil)
}

func (c *HTTPClient) SubmitSignedForfeitTxs(ctx context.Context, requestID string, forfeitTxsB64 []string, settlementPsbtB64 string) error {
	body := map[string]interface{}{
		"requestId":  requestID,
		"forfeitTxs": forfeitTxsB64,
	}
	if settlementPsbtB64 != "" {
		body["signedRoundTx"] = settlementPsbtB64
	}
	return c.post(ctx, "/v1/round/submitForfeitTxs", body, nil)
}

func (c *HTTPClient) Ping(ctx context.Context, requestID string) error {
	return c.post(ctx, "/v1/round/ping", map[string]string{"requestId": requestID}, nil)
}

func (c *HTTPClient) GetVtxos(ctx context.Context, address string) ([]ark.Vtxo, error) {
	var result struct {
		Vtxos []struct {
			Outpoint string `json:"outpoint"`
			Amount   uint64 `json:"amount,string"`
			Script   string `json:"script"`
			Status   string `json:"status"`
		} `json:"vtxos"`
	}
	if err := c.get(ctx, "/v1/vtxos/"+address, &result); err != nil {
		return nil, err
	}

	vtxos := make([]ark.Vtxo, 0, len(result.Vtxos))
	for _, v := range result.Vtxos {
		status := ark.StatusPending
		switch v.Status {
		case "settled":
			status = ark.StatusSettled
		case "swept":
			status = ark.StatusSwept
		case "spent":
			status = ark.StatusSpent
		}

		outpoint, err := ark.ParseOutpoint(v.Outpoint)
		if err != nil {
			return nil, fmt.Errorf("arkprovider: %w", err)
		}
		script, err := helpers.HexToBytes(v.Script)
		if err != nil {
			return nil, fmt.Errorf("arkprovider: decoding vtxo script: %w", err)
		}

		vtxos = append(vtxos, ark.Vtxo{
			Outpoint: outpoint,
			Value:    v.Amount,
			Script:   script,
			Status:   status,
		})
	}
	return vtxos, nil
}

// GetEventStream opens the settlement event stream (GET /v1/events, a
// newline-delimited JSON body) and reconnects on transport failure until
// ctx is cancelled, per spec.md §7's retry-exception for the event stream.
func (c *HTTPClient) GetEventStream(ctx context.Context) (<-chan Event, <-chan error) {
	events := make(chan Event)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		for {
			if ctx.Err() != nil {
				return
			}
			if err := c.streamOnce(ctx, events); err != nil {
				select {
				case errs <- err:
				default:
				}
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			return
		}
	}()

	return events, errs
}

func (c *HTTPClient) streamOnce(ctx context.Context, events chan<- Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/events", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("arkprovider: opening event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("arkprovider: event stream status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		event, err := ParseEventLine(line)
		if err != nil {
			continue
		}
		select {
		case events <- *event:
		case <-ctx.Done():
			return nil
		}
	}
	return scanner.Err()
}

func (c *HTTPClient) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, result)
}

func (c *HTTPClient) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("arkprovider: encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, result)
}

func decodeResponse(resp *http.Response, result interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("arkprovider: server returned status %d: %s", resp.StatusCode, string(body))
	}
	if result == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}
