// Package dataset provides the training batch stream. The daemon only
// needs a lazy, infinite, restartable sequence of token batches; the
// synthetic provider generates one deterministically from a seed so local
// training works without any external data dependency.
package dataset

import (
	"context"
	"math/rand"
	"sync"

	"neurond/minerconfig"
	"neurond/synapse"
)

// Provider yields training batches on demand, forever.
type Provider interface {
	Next(ctx context.Context) (*synapse.Tensor, error)
}

// Synthetic generates token sequences from a seeded random walk. Adjacent
// tokens are correlated, so a language model has real structure to learn.
type Synthetic struct {
	mu        sync.Mutex
	rng       *rand.Rand
	seed      int64
	batchSize int
	seqLen    int
	vocab     int
}

func NewSynthetic(cfg minerconfig.DatasetConfig) *Synthetic {
	return &Synthetic{
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		seed:      cfg.Seed,
		batchSize: cfg.BatchSize,
		seqLen:    cfg.SequenceLen,
		vocab:     cfg.VocabSize,
	}
}

func (s *Synthetic) Next(ctx context.Context) (*synapse.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := make([]int64, s.batchSize*s.seqLen)
	for r := 0; r < s.batchSize; r++ {
		tok := int64(s.rng.Intn(s.vocab))
		for c := 0; c < s.seqLen; c++ {
			tokens[r*s.seqLen+c] = tok
			step := int64(s.rng.Intn(7)) - 3
			tok = ((tok+step)%int64(s.vocab) + int64(s.vocab)) % int64(s.vocab)
		}
	}
	return synapse.IntTensor([]int64{int64(s.batchSize), int64(s.seqLen)}, tokens), nil
}

// Restart rewinds the stream to its first batch.
func (s *Synthetic) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(s.seed))
}
