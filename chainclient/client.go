// Package chainclient is the thin client-side adapter over the external
// ledger/registry node: block height polling, neuron lookup and weight
// submission. It knows nothing about epochs or admission policy.
package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"neurond/logging"
)

type Client struct {
	baseUrl string
	http    *http.Client
}

func NewClient(baseUrl string) *Client {
	return &Client{
		baseUrl: baseUrl,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithRetry connects to the chain node, retrying the first block
// query until it answers. Exhausting the retries means the registry is
// unreachable, which is fatal for the daemon.
func NewClientWithRetry(ctx context.Context, baseUrl string, attempts int, delay time.Duration) (*Client, error) {
	client := NewClient(baseUrl)
	var err error
	for i := 0; i < attempts; i++ {
		var height int64
		height, err = client.CurrentBlock(ctx)
		if err == nil {
			logging.Info("connected to chain node", logging.Chain, "url", baseUrl, "height", height)
			return client, nil
		}
		logging.Warn("chain node not ready, retrying", logging.Chain,
			"attempt", i+1, "of", attempts, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("chain node at %s unreachable after %d attempts: %w", baseUrl, attempts, err)
}

// CurrentBlock returns the ledger's latest block height.
func (c *Client) CurrentBlock(ctx context.Context) (int64, error) {
	var resp blockResponse
	if err := c.get(ctx, "/block", &resp); err != nil {
		return 0, err
	}
	return resp.Height, nil
}

// NeuronForKey looks up the registry record of one hotkey.
func (c *Client) NeuronForKey(ctx context.Context, hotkey string) (PeerRecord, error) {
	var record PeerRecord
	if err := c.get(ctx, "/neurons/"+url.PathEscape(hotkey), &record); err != nil {
		return PeerRecord{}, err
	}
	return record, nil
}

// Params returns the subnet hyperparameters.
func (c *Client) Params(ctx context.Context) (ChainParams, error) {
	var params ChainParams
	if err := c.get(ctx, "/params", &params); err != nil {
		return ChainParams{}, err
	}
	return params, nil
}

// FetchMetagraph reads one consistent snapshot of the registry.
func (c *Client) FetchMetagraph(ctx context.Context) (MetagraphSnapshot, error) {
	var snapshot MetagraphSnapshot
	if err := c.get(ctx, "/metagraph", &snapshot); err != nil {
		return MetagraphSnapshot{}, err
	}
	return snapshot, nil
}

// SetWeights submits a weight vector over all uids. With waitForInclusion
// false the ledger acknowledges receipt without waiting for the extrinsic
// to land; the returned bool is the ledger's verdict either way.
func (c *Client) SetWeights(ctx context.Context, uids []int64, weights []float64, waitForInclusion bool) (bool, error) {
	body, err := json.Marshal(setWeightsRequest{
		Uids:             uids,
		Weights:          weights,
		WaitForInclusion: waitForInclusion,
	})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+"/weights", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return false, readError(httpResp)
	}

	var resp setWeightsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return false, err
	}
	if !resp.Success && resp.Message != "" {
		logging.Warn("weight submission rejected", logging.Chain, "message", resp.Message)
	}
	return resp.Success, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseUrl+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("chain node returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}
