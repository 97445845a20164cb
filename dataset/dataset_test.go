package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurond/minerconfig"
)

func testConfig() minerconfig.DatasetConfig {
	return minerconfig.DatasetConfig{
		Seed:        7,
		BatchSize:   4,
		SequenceLen: 16,
		VocabSize:   64,
	}
}

func TestBatchShapeAndRange(t *testing.T) {
	s := NewSynthetic(testConfig())

	batch, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 16}, batch.Shape)
	require.Len(t, batch.Ints, 64)
	for _, tok := range batch.Ints {
		assert.GreaterOrEqual(t, tok, int64(0))
		assert.Less(t, tok, int64(64))
	}
}

func TestRestartReplaysStream(t *testing.T) {
	ctx := context.Background()
	s := NewSynthetic(testConfig())

	first, err := s.Next(ctx)
	require.NoError(t, err)
	second, err := s.Next(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Ints, second.Ints)

	s.Restart()
	replay, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Ints, replay.Ints)
}

func TestSameSeedSameStream(t *testing.T) {
	ctx := context.Background()
	a := NewSynthetic(testConfig())
	b := NewSynthetic(testConfig())

	for i := 0; i < 3; i++ {
		ba, err := a.Next(ctx)
		require.NoError(t, err)
		bb, err := b.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, ba.Ints, bb.Ints)
	}
}

func TestNextHonorsContext(t *testing.T) {
	s := NewSynthetic(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
