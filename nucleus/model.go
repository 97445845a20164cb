package nucleus

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"neurond/synapse"
)

// ErrNoGradient is returned when a backward pass is applied against an
// output that carries no gradient graph (generated token ids).
var ErrNoGradient = errors.New("output carries no gradient graph")

// Model is a token-embedding language model: an embedding table and an
// output projection. Small enough to train on CPU, real enough that every
// synapse kind has an honest forward and the trainable kinds an honest
// backward.
type Model struct {
	VocabSize int
	Dim       int
	Embed     *Param // VocabSize x Dim
	Out       *Param // Dim x VocabSize

	// BestLoss is the best epoch-average training loss seen so far. It is
	// persisted with the checkpoint and only improves strictly.
	BestLoss float64
}

func NewModel(vocabSize, dim int, seed int64) *Model {
	m := &Model{
		VocabSize: vocabSize,
		Dim:       dim,
		Embed:     newParam("embed", vocabSize, dim),
		Out:       newParam("out", dim, vocabSize),
		BestLoss:  math.Inf(1),
	}
	rng := rand.New(rand.NewSource(seed))
	scale := 1.0 / math.Sqrt(float64(dim))
	for i := range m.Embed.Data {
		m.Embed.Data[i] = rng.NormFloat64() * scale
	}
	for i := range m.Out.Data {
		m.Out.Data[i] = rng.NormFloat64() * scale
	}
	return m
}

func (m *Model) Params() []*Param {
	return []*Param{m.Embed, m.Out}
}

// Output pairs a forward result with the backward closure that accumulates
// gradients for it. The closure stays valid after it runs, so several
// backward passes in one batch can reuse the same upstream state.
type Output struct {
	Value    *synapse.Tensor
	backward func(grad []float64) error
}

// Backward applies a gradient against this output, accumulating into the
// model's parameter gradients. Callers must hold the engine's update lock.
func (o *Output) Backward(grad []float64) error {
	if o.backward == nil {
		return ErrNoGradient
	}
	if len(grad) != len(o.Value.Floats) && len(grad) != int(o.Value.NumElements()) {
		return fmt.Errorf("gradient has %d elements, output has %d", len(grad), o.Value.NumElements())
	}
	return o.backward(grad)
}

// tokenRows validates an integer token tensor and returns its [rows, cols]
// view. A rank-1 tensor is treated as a single row.
func (m *Model) tokenRows(t *synapse.Tensor) (rows, cols int, err error) {
	if t == nil || t.Dtype != synapse.DtypeInt64 {
		return 0, 0, errors.New("input must be an integer token tensor")
	}
	switch len(t.Shape) {
	case 1:
		rows, cols = 1, int(t.Shape[0])
	case 2:
		rows, cols = int(t.Shape[0]), int(t.Shape[1])
	default:
		return 0, 0, fmt.Errorf("input rank %d not supported", len(t.Shape))
	}
	if rows*cols != len(t.Ints) {
		return 0, 0, fmt.Errorf("shape %v does not match %d tokens", t.Shape, len(t.Ints))
	}
	for _, tok := range t.Ints {
		if tok < 0 || tok >= int64(m.VocabSize) {
			return 0, 0, fmt.Errorf("token %d outside vocabulary of %d", tok, m.VocabSize)
		}
	}
	return rows, cols, nil
}

// HiddenState returns the embedding row per input position, shape
// [rows, cols, dim].
func (m *Model) HiddenState(input *synapse.Tensor) (*Output, error) {
	rows, cols, err := m.tokenRows(input)
	if err != nil {
		return nil, err
	}
	dim := m.Dim
	tokens := append([]int64(nil), input.Ints...)
	hidden := make([]float64, rows*cols*dim)
	for i, tok := range tokens {
		copy(hidden[i*dim:(i+1)*dim], m.Embed.Data[int(tok)*dim:(int(tok)+1)*dim])
	}
	out := &Output{
		Value: synapse.FloatTensor([]int64{int64(rows), int64(cols), int64(dim)}, hidden),
	}
	out.backward = func(grad []float64) error {
		for i, tok := range tokens {
			base := int(tok) * dim
			for d := 0; d < dim; d++ {
				m.Embed.Grad[base+d] += grad[i*dim+d]
			}
		}
		return nil
	}
	return out, nil
}

// CausalLM returns next-token logits per input position, shape
// [rows, cols, vocab].
func (m *Model) CausalLM(input *synapse.Tensor) (*Output, error) {
	rows, cols, err := m.tokenRows(input)
	if err != nil {
		return nil, err
	}
	dim, vocab := m.Dim, m.VocabSize
	tokens := append([]int64(nil), input.Ints...)
	logits := make([]float64, rows*cols*vocab)
	for i, tok := range tokens {
		h := m.Embed.Data[int(tok)*dim : (int(tok)+1)*dim]
		row := logits[i*vocab : (i+1)*vocab]
		for d := 0; d < dim; d++ {
			hd := h[d]
			outRow := m.Out.Data[d*vocab : (d+1)*vocab]
			for v := 0; v < vocab; v++ {
				row[v] += hd * outRow[v]
			}
		}
	}
	out := &Output{
		Value: synapse.FloatTensor([]int64{int64(rows), int64(cols), int64(vocab)}, logits),
	}
	out.backward = func(grad []float64) error {
		for i, tok := range tokens {
			base := int(tok) * dim
			g := grad[i*vocab : (i+1)*vocab]
			for d := 0; d < dim; d++ {
				hd := m.Embed.Data[base+d]
				outRow := m.Out.Data[d*vocab : (d+1)*vocab]
				var hGrad float64
				for v := 0; v < vocab; v++ {
					m.Out.Grad[d*vocab+v] += hd * g[v]
					hGrad += outRow[v] * g[v]
				}
				m.Embed.Grad[base+d] += hGrad
			}
		}
		return nil
	}
	return out, nil
}

// Generate decodes continuations for each prompt row. The result is a
// tensor of token ids with no gradient graph: a backward pass against it
// fails with ErrNoGradient.
func (m *Model) Generate(input *synapse.Tensor, params synapse.GenerateParams) (*Output, error) {
	rows, cols, err := m.tokenRows(input)
	if err != nil {
		return nil, err
	}
	steps := params.NumToGenerate
	if steps <= 0 {
		steps = synapse.DefaultGenerateParams().NumToGenerate
	}
	temperature := params.Temperature
	if temperature <= 0 {
		temperature = 1.0
	}
	repetition := params.RepetitionPenalty
	if repetition <= 0 {
		repetition = 1.0
	}

	dim, vocab := m.Dim, m.VocabSize
	generated := make([]int64, 0, rows*steps)
	for r := 0; r < rows; r++ {
		prompt := input.Ints[r*cols : (r+1)*cols]
		// Running mean embedding of everything consumed so far.
		state := make([]float64, dim)
		seen := make(map[int64]int)
		consume := func(tok int64, n int) {
			base := int(tok) * dim
			for d := 0; d < dim; d++ {
				state[d] += (m.Embed.Data[base+d] - state[d]) / float64(n)
			}
			seen[tok]++
		}
		for i, tok := range prompt {
			consume(tok, i+1)
		}
		for step := 0; step < steps; step++ {
			best, bestScore := int64(0), math.Inf(-1)
			for v := 0; v < vocab; v++ {
				var score float64
				for d := 0; d < dim; d++ {
					score += state[d] * m.Out.Data[d*vocab+v]
				}
				score /= temperature
				if seen[int64(v)] > 0 {
					score /= repetition
				}
				if score > bestScore {
					best, bestScore = int64(v), score
				}
			}
			generated = append(generated, best)
			consume(best, cols+step+1)
		}
	}
	return &Output{
		Value: synapse.IntTensor([]int64{int64(rows), int64(steps)}, generated),
	}, nil
}

// TrainStep runs one next-token prediction pass over a token batch,
// accumulating gradients of the mean cross-entropy loss. Returns the loss.
func (m *Model) TrainStep(batch *synapse.Tensor) (float64, error) {
	rows, cols, err := m.tokenRows(batch)
	if err != nil {
		return 0, err
	}
	if cols < 2 {
		return 0, errors.New("batch sequences too short to predict a next token")
	}
	dim, vocab := m.Dim, m.VocabSize
	count := rows * (cols - 1)
	probs := make([]float64, vocab)

	var loss float64
	for r := 0; r < rows; r++ {
		seq := batch.Ints[r*cols : (r+1)*cols]
		for t := 0; t < cols-1; t++ {
			tok, target := int(seq[t]), int(seq[t+1])
			h := m.Embed.Data[tok*dim : (tok+1)*dim]

			maxLogit := math.Inf(-1)
			for v := 0; v < vocab; v++ {
				var l float64
				for d := 0; d < dim; d++ {
					l += h[d] * m.Out.Data[d*vocab+v]
				}
				probs[v] = l
				if l > maxLogit {
					maxLogit = l
				}
			}
			var sum float64
			for v := 0; v < vocab; v++ {
				probs[v] = math.Exp(probs[v] - maxLogit)
				sum += probs[v]
			}
			for v := 0; v < vocab; v++ {
				probs[v] /= sum
			}
			loss -= math.Log(math.Max(probs[target], 1e-12))

			// dlogits = (softmax - onehot) / count
			for d := 0; d < dim; d++ {
				hd := h[d]
				outRow := m.Out.Data[d*vocab : (d+1)*vocab]
				var hGrad float64
				for v := 0; v < vocab; v++ {
					g := probs[v]
					if v == target {
						g -= 1
					}
					g /= float64(count)
					m.Out.Grad[d*vocab+v] += hd * g
					hGrad += outRow[v] * g
				}
				m.Embed.Grad[tok*dim+d] += hGrad
			}
		}
	}
	return loss / float64(count), nil
}
