// Package metagraph caches the registry's peer table miner-side: hotkeys,
// stake and the outgoing weight rows the admission controller consults.
package metagraph

import (
	"context"
	"sync"

	"neurond/chainclient"
	"neurond/logging"
)

// Fetcher reads one consistent registry snapshot. Satisfied by
// *chainclient.Client.
type Fetcher interface {
	FetchMetagraph(ctx context.Context) (chainclient.MetagraphSnapshot, error)
}

type Metagraph struct {
	mu      sync.RWMutex
	fetcher Fetcher

	block       int64
	neurons     []chainclient.PeerRecord
	weights     [][]float64
	uidByHotkey map[string]int64
}

func New(fetcher Fetcher) *Metagraph {
	return &Metagraph{
		fetcher:     fetcher,
		uidByHotkey: make(map[string]int64),
	}
}

// Sync replaces the cached state with a fresh registry snapshot.
func (m *Metagraph) Sync(ctx context.Context) error {
	snapshot, err := m.fetcher.FetchMetagraph(ctx)
	if err != nil {
		return err
	}
	m.restore(snapshot)
	logging.Debug("metagraph synced", logging.Metagraph,
		"block", snapshot.Block, "neurons", len(snapshot.Neurons))
	return nil
}

func (m *Metagraph) restore(snapshot chainclient.MetagraphSnapshot) {
	uidByHotkey := make(map[string]int64, len(snapshot.Neurons))
	for _, n := range snapshot.Neurons {
		uidByHotkey[n.Hotkey] = n.Uid
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = snapshot.Block
	m.neurons = snapshot.Neurons
	m.weights = snapshot.Weights
	m.uidByHotkey = uidByHotkey
}

func (m *Metagraph) snapshot() chainclient.MetagraphSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return chainclient.MetagraphSnapshot{
		Block:   m.block,
		Neurons: m.neurons,
		Weights: m.weights,
	}
}

// Block is the height the cached snapshot was taken at.
func (m *Metagraph) Block() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.block
}

// Size is the number of registered peers.
func (m *Metagraph) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.neurons)
}

// UID resolves a hotkey to its registry index.
func (m *Metagraph) UID(hotkey string) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.uidByHotkey[hotkey]
	return uid, ok
}

// Neuron returns the peer record at a uid.
func (m *Metagraph) Neuron(uid int64) (chainclient.PeerRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if uid < 0 || uid >= int64(len(m.neurons)) {
		return chainclient.PeerRecord{}, false
	}
	return m.neurons[uid], true
}

// OutgoingWeightCount counts the nonzero entries of a peer's weight row, a
// proxy for how many peers it actively scores.
func (m *Metagraph) OutgoingWeightCount(uid int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if uid < 0 || uid >= int64(len(m.weights)) {
		return 0
	}
	count := 0
	for _, w := range m.weights[uid] {
		if w > 0 {
			count++
		}
	}
	return count
}

// Uids returns 0..n-1, the index vector a weight commit spans.
func (m *Metagraph) Uids() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uids := make([]int64, len(m.neurons))
	for i := range uids {
		uids[i] = int64(i)
	}
	return uids
}
