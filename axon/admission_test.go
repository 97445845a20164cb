package axon

import (
	"context"
	"testing"
	"time"

	"neurond/chainclient"
	"neurond/metagraph"
	"neurond/minerconfig"
	"neurond/synapse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	snapshot chainclient.MetagraphSnapshot
}

func (s *stubFetcher) FetchMetagraph(context.Context) (chainclient.MetagraphSnapshot, error) {
	return s.snapshot, nil
}

func testMetagraph(t *testing.T) *metagraph.Metagraph {
	t.Helper()
	m := metagraph.New(&stubFetcher{snapshot: chainclient.MetagraphSnapshot{
		Block: 100,
		Neurons: []chainclient.PeerRecord{
			{Hotkey: "validator", Uid: 0, Stake: 5000, IsRegistered: true},
			{Hotkey: "lurker", Uid: 1, Stake: 10, IsRegistered: true},
			{Hotkey: "whale", Uid: 2, Stake: 90000, IsRegistered: true},
		},
		Weights: [][]float64{
			{0, 0.5, 0.5},
			{0, 0, 0},
			{0.2, 0, 0},
		},
	}})
	require.NoError(t, m.Sync(context.Background()))
	return m
}

func TestDisabledChainNeverRejects(t *testing.T) {
	cfg := minerconfig.BlacklistConfig{
		Enabled:           false,
		RegistrationCheck: true,
		StakeCheck:        true,
		ValidatorCheck:    true,
		RateLimitCheck:    true,
		MinStake:          1e9,
		RateLimitSeconds:  3600,
	}
	a := NewAdmissionController(cfg, testMetagraph(t), 2)

	assert.False(t, a.IsBlacklisted("nobody", synapse.TextCausalLM))
	assert.False(t, a.IsBlacklisted("nobody", synapse.TextCausalLM))
}

func TestRegistrationCheck(t *testing.T) {
	meta := testMetagraph(t)

	cfg := minerconfig.BlacklistConfig{Enabled: true, RegistrationCheck: true}
	a := NewAdmissionController(cfg, meta, 2)
	assert.True(t, a.IsBlacklisted("stranger", synapse.TextCausalLM))
	assert.False(t, a.IsBlacklisted("validator", synapse.TextCausalLM))

	cfg.AllowNonRegistered = true
	a = NewAdmissionController(cfg, meta, 2)
	assert.False(t, a.IsBlacklisted("stranger", synapse.TextCausalLM))
}

func TestStakeCheck(t *testing.T) {
	cfg := minerconfig.BlacklistConfig{Enabled: true, StakeCheck: true, MinStake: 1000}
	a := NewAdmissionController(cfg, testMetagraph(t), 2)

	assert.False(t, a.IsBlacklisted("validator", synapse.TextCausalLM))
	assert.True(t, a.IsBlacklisted("lurker", synapse.TextCausalLM))
	assert.True(t, a.IsBlacklisted("stranger", synapse.TextCausalLM))
}

func TestValidatorCheck(t *testing.T) {
	cfg := minerconfig.BlacklistConfig{Enabled: true, ValidatorCheck: true}
	a := NewAdmissionController(cfg, testMetagraph(t), 2)

	// validator scores two peers, whale only one, lurker none.
	assert.False(t, a.IsBlacklisted("validator", synapse.TextCausalLM))
	assert.True(t, a.IsBlacklisted("whale", synapse.TextCausalLM))
	assert.True(t, a.IsBlacklisted("lurker", synapse.TextCausalLM))
}

func TestRateLimitWindowAndRefreshOnReject(t *testing.T) {
	cfg := minerconfig.BlacklistConfig{Enabled: true, RateLimitCheck: true, RateLimitSeconds: 10}
	a := NewAdmissionController(cfg, testMetagraph(t), 2)

	clock := time.Unix(1000, 0)
	a.now = func() time.Time { return clock }

	// First contact is always accepted and recorded.
	assert.False(t, a.IsBlacklisted("validator", synapse.TextCausalLM))

	// 5s later: inside the window, rejected, but the timestamp refreshes.
	clock = clock.Add(5 * time.Second)
	assert.True(t, a.IsBlacklisted("validator", synapse.TextCausalLM))

	// 12s after the first call, but only 7s after the rejected one: the
	// rejection reset the cooldown, so the caller is still rejected.
	clock = clock.Add(7 * time.Second)
	assert.True(t, a.IsBlacklisted("validator", synapse.TextCausalLM))

	// Exactly one window after the last (rejected) call: accepted again.
	clock = clock.Add(10 * time.Second)
	assert.False(t, a.IsBlacklisted("validator", synapse.TextCausalLM))
}

func TestRateLimitTracksHotkeysIndependently(t *testing.T) {
	cfg := minerconfig.BlacklistConfig{Enabled: true, RateLimitCheck: true, RateLimitSeconds: 10}
	a := NewAdmissionController(cfg, testMetagraph(t), 2)

	clock := time.Unix(2000, 0)
	a.now = func() time.Time { return clock }

	assert.False(t, a.IsBlacklisted("validator", synapse.TextCausalLM))
	clock = clock.Add(time.Second)
	// A different hotkey is unaffected by validator's cooldown.
	assert.False(t, a.IsBlacklisted("whale", synapse.TextCausalLM))
	assert.True(t, a.IsBlacklisted("validator", synapse.TextCausalLM))
}

func TestChainShortCircuitsBeforeRateLimit(t *testing.T) {
	cfg := minerconfig.BlacklistConfig{
		Enabled:           true,
		RegistrationCheck: true,
		RateLimitCheck:    true,
		RateLimitSeconds:  10,
	}
	a := NewAdmissionController(cfg, testMetagraph(t), 2)

	// Registration rejects first, so the rate limiter never records the
	// caller.
	assert.True(t, a.IsBlacklisted("stranger", synapse.TextCausalLM))
	a.mu.Lock()
	_, seen := a.lastSeen["stranger"]
	a.mu.Unlock()
	assert.False(t, seen)
}
