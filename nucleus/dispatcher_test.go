package nucleus

import (
	"errors"
	"testing"

	"neurond/synapse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchItem(rows, cols int) *synapse.Tensor {
	tokens := make([]int64, rows*cols)
	for i := range tokens {
		tokens[i] = int64(i % 8)
	}
	return synapse.IntTensor([]int64{int64(rows), int64(cols)}, tokens)
}

func gradFor(out *synapse.Tensor) *synapse.Tensor {
	grad := make([]float64, out.NumElements())
	for i := range grad {
		grad[i] = 0.5
	}
	return synapse.FloatTensor(out.Shape, grad)
}

func TestDispatchDisabledIsNoop(t *testing.T) {
	e := NewEngine(testModel(), 0.1, 0, false)
	e.RegisterModelCallbacks(synapse.TextLastHiddenState)

	results := e.Dispatch(
		[]*synapse.Tensor{batchItem(2, 3)},
		[]*synapse.Tensor{gradFor(batchItem(2, 3))},
		[]CallSpec{{Kind: synapse.TextLastHiddenState}},
	)
	assert.Empty(t, results)
	assert.Zero(t, e.GradientCount())
}

func TestDispatchBatchOutcomes(t *testing.T) {
	e := NewEngine(testModel(), 0.1, 0, true)
	e.RegisterModelCallbacks(synapse.TextLastHiddenState)
	e.RegisterCallback(synapse.TextCausalLM, func(*synapse.Tensor, CallSpec) (*Output, error) {
		return nil, errors.New("device exploded")
	})
	// TextSeq2Seq deliberately left unregistered.

	input := batchItem(2, 3)
	hidden, err := e.model.HiddenState(input)
	require.NoError(t, err)

	inputs := []*synapse.Tensor{input, input, input, input}
	grads := []*synapse.Tensor{
		gradFor(hidden.Value),
		gradFor(hidden.Value),
		gradFor(hidden.Value),
		gradFor(hidden.Value),
	}
	requests := []CallSpec{
		{Kind: synapse.TextLastHiddenState},
		{Kind: synapse.TextSeq2Seq},
		{Kind: synapse.TextCausalLM},
		{Kind: synapse.TextLastHiddenState},
	}

	results := e.Dispatch(inputs, grads, requests)
	require.Len(t, results, 4)

	assert.Equal(t, synapse.CodeSuccess, results[0].Code)
	assert.Equal(t, synapse.CodeNotImplemented, results[1].Code)
	assert.Equal(t, synapse.CodeUnknownException, results[2].Code)
	assert.Contains(t, results[2].Message, "device exploded")
	assert.Equal(t, synapse.CodeSuccess, results[3].Code)

	// Two successes, two samples each.
	assert.Equal(t, int64(4), e.GradientCount())
}

func TestDispatchSeq2SeqBackwardIsContained(t *testing.T) {
	e := NewEngine(testModel(), 0.1, 0, true)
	e.RegisterModelCallbacks(synapse.TextSeq2Seq, synapse.TextLastHiddenState)

	input := batchItem(1, 3)
	hidden, err := e.model.HiddenState(input)
	require.NoError(t, err)

	params := synapse.DefaultGenerateParams()
	params.NumToGenerate = 4
	results := e.Dispatch(
		[]*synapse.Tensor{input, input},
		[]*synapse.Tensor{synapse.FloatTensor([]int64{1, 4}, []float64{1, 1, 1, 1}), gradFor(hidden.Value)},
		[]CallSpec{
			{Kind: synapse.TextSeq2Seq, Generate: &params},
			{Kind: synapse.TextLastHiddenState},
		},
	)
	require.Len(t, results, 2)
	// Generation outputs carry no gradient graph, so the backward fails,
	// but only for that item.
	assert.Equal(t, synapse.CodeUnknownException, results[0].Code)
	assert.Equal(t, synapse.CodeSuccess, results[1].Code)
	assert.Equal(t, int64(1), e.GradientCount())
}

func TestDispatchGradientShapeMismatch(t *testing.T) {
	e := NewEngine(testModel(), 0.1, 0, true)
	e.RegisterModelCallbacks(synapse.TextLastHiddenState)

	results := e.Dispatch(
		[]*synapse.Tensor{batchItem(1, 2)},
		[]*synapse.Tensor{synapse.FloatTensor([]int64{3}, []float64{1, 2, 3})},
		[]CallSpec{{Kind: synapse.TextLastHiddenState}},
	)
	require.Len(t, results, 1)
	assert.Equal(t, synapse.CodeUnknownException, results[0].Code)
	assert.Zero(t, e.GradientCount())
}

func TestUpdateResetsCounterAndAdaptsLR(t *testing.T) {
	e := NewEngine(testModel(), 0.1, 0, true)
	e.RegisterModelCallbacks(synapse.TextLastHiddenState)

	input := batchItem(5, 2)
	hidden, err := e.model.HiddenState(input)
	require.NoError(t, err)

	results := e.Dispatch(
		[]*synapse.Tensor{input},
		[]*synapse.Tensor{gradFor(hidden.Value)},
		[]CallSpec{{Kind: synapse.TextLastHiddenState}},
	)
	require.Len(t, results, 1)
	require.Equal(t, synapse.CodeSuccess, results[0].Code)
	require.Equal(t, int64(5), e.GradientCount())

	lr := e.Update()
	assert.InDelta(t, 0.1/5.0, lr, 1e-12)
	assert.Zero(t, e.GradientCount())

	// With no remote gradients pending the next update uses the fixed rate.
	lr = e.Update()
	assert.Equal(t, 0.1, lr)
}

func TestForwardUnregisteredKind(t *testing.T) {
	e := NewEngine(testModel(), 0.1, 0, true)

	_, err := e.Forward(batchItem(1, 2), CallSpec{Kind: synapse.TextCausalLM})
	require.ErrorIs(t, err, synapse.ErrNotImplemented)
}
