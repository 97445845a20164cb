package chainclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChainNode(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /block", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(blockResponse{Height: 1000})
	})
	mux.HandleFunc("GET /neurons/{hotkey}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("hotkey") != "alice" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(PeerRecord{
			Hotkey: "alice", Uid: 3, Stake: 100.5, Rank: 0.2, IsRegistered: true,
		})
	})
	mux.HandleFunc("GET /params", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChainParams{MinAllowedWeights: 8, N: 64})
	})
	mux.HandleFunc("POST /weights", func(w http.ResponseWriter, r *http.Request) {
		var req setWeightsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Weights, len(req.Uids))
		json.NewEncoder(w).Encode(setWeightsResponse{Success: !req.WaitForInclusion})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestCurrentBlockAndNeuronLookup(t *testing.T) {
	server := testChainNode(t)
	client := NewClient(server.URL)
	ctx := context.Background()

	height, err := client.CurrentBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), height)

	record, err := client.NeuronForKey(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), record.Uid)
	assert.Equal(t, 100.5, record.Stake)
	assert.True(t, record.IsRegistered)

	_, err = client.NeuronForKey(ctx, "mallory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestParams(t *testing.T) {
	server := testChainNode(t)
	client := NewClient(server.URL)

	params, err := client.Params(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, params.MinAllowedWeights)
	assert.Equal(t, int64(64), params.N)
}

func TestSetWeights(t *testing.T) {
	server := testChainNode(t)
	client := NewClient(server.URL)

	ok, err := client.SetWeights(context.Background(), []int64{0, 1, 2}, []float64{0, 1, 0}, false)
	require.NoError(t, err)
	assert.True(t, ok)

	// The test node reports failure for wait_for_inclusion; the client
	// surfaces the verdict without erroring.
	ok, err = client.SetWeights(context.Background(), []int64{0}, []float64{1}, true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewClientWithRetryExhaustsAndFails(t *testing.T) {
	client, err := NewClientWithRetry(context.Background(), "http://127.0.0.1:1", 2, time.Millisecond)
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "unreachable after 2 attempts")
}

func TestNewClientWithRetryEventuallyConnects(t *testing.T) {
	server := testChainNode(t)

	client, err := NewClientWithRetry(context.Background(), server.URL, 3, time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, client)
}
