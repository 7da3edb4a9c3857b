package arkprovider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arkwallet/arkwalletd/internal/ark"
)

// EsploraChainIndexer implements ChainIndexer and Broadcaster against an
// Esplora-compatible API (blockstream.info, mempool.space, and
// self-hosted instances share this shape), for the boarding-UTXO and
// unilateral-exit paths of spec.md §4.8.
type EsploraChainIndexer struct {
	baseURL    string
	httpClient *http.Client
}

// NewEsploraChainIndexer builds an EsploraChainIndexer for the given API
// base URL.
func NewEsploraChainIndexer(baseURL string) *EsploraChainIndexer {
	return &EsploraChainIndexer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

var (
	_ ChainIndexer = (*EsploraChainIndexer)(nil)
	_ Broadcaster  = (*EsploraChainIndexer)(nil)
)

func (e *EsploraChainIndexer) GetCoins(ctx context.Context, address string) ([]Coin, error) {
	var result []struct {
		Txid   string `json:"txid"`
		Vout   uint32 `json:"vout"`
		Value  uint64 `json:"value"`
		Status struct {
			Confirmed   bool  `json:"confirmed"`
			BlockHeight int64 `json:"block_height"`
		} `json:"status"`
	}

	if err := e.get(ctx, "/address/"+address+"/utxo", &result); err != nil {
		return nil, err
	}

	coins := make([]Coin, len(result))
	for i, u := range result {
		var blockHeight uint32
		if u.Status.BlockHeight > 0 {
			blockHeight = uint32(u.Status.BlockHeight)
		}
		coins[i] = Coin{
			Outpoint:    ark.Outpoint{Txid: u.Txid, Vout: u.Vout},
			Value:       u.Value,
			Confirmed:   u.Status.Confirmed,
			BlockHeight: blockHeight,
		}
	}
	return coins, nil
}

func (e *EsploraChainIndexer) BroadcastTransaction(ctx context.Context, txHex string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/tx", strings.NewReader(txHex))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("arkprovider: broadcasting transaction: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("arkprovider: broadcast rejected: %s", strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}

func (e *EsploraChainIndexer) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, result)
}
