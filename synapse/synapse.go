// Package synapse defines the request kinds a miner serves and the call
// envelopes that carry them over the wire. Each kind is an independent
// ForwardCall variant with its own payload and parameters; the envelope
// contract (codec selectors, return-code-first decoding, write-once output)
// is shared.
package synapse

// Kind identifies a request type with its own compute callback and wire
// envelope.
type Kind string

const (
	TextLastHiddenState Kind = "text_last_hidden_state"
	TextCausalLM        Kind = "text_causal_lm"
	TextSeq2Seq         Kind = "text_seq_2_seq"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case TextLastHiddenState, TextCausalLM, TextSeq2Seq:
		return Kind(s), nil
	}
	return "", ErrUnknownKind.Wrapf("%q", s)
}

// ForwardCall is the per-request call state: input payload, algorithm
// parameters and, once the remote side answers, the output payload. The
// output slot is write-once; everything else is immutable after creation.
type ForwardCall interface {
	Kind() Kind
	InputShape() []int64
	OutputShape() []int64
	Input() *Tensor
	Output() *Tensor
	SetOutput(t *Tensor) error
	WireRequest() (*WireRequest, error)
	ReadWireResponse(resp *WireResponse) error
}

// GenerateParams carries the text generation knobs of a seq2seq call.
type GenerateParams struct {
	TopK               int     `msgpack:"topk" json:"topk"`
	NumToGenerate      int     `msgpack:"num_to_generate" json:"num_to_generate"`
	NumBeams           int     `msgpack:"num_beams" json:"num_beams"`
	NoRepeatNgramSize  int     `msgpack:"no_repeat_ngram_size" json:"no_repeat_ngram_size"`
	EarlyStopping      bool    `msgpack:"early_stopping" json:"early_stopping"`
	NumReturnSequences int     `msgpack:"num_return_sequences" json:"num_return_sequences"`
	DoSample           bool    `msgpack:"do_sample" json:"do_sample"`
	TopP               float64 `msgpack:"top_p" json:"top_p"`
	Temperature        float64 `msgpack:"temperature" json:"temperature"`
	RepetitionPenalty  float64 `msgpack:"repetition_penalty" json:"repetition_penalty"`
	LengthPenalty      float64 `msgpack:"length_penalty" json:"length_penalty"`
	MaxTime            float64 `msgpack:"max_time" json:"max_time"`
	NumBeamGroups      int     `msgpack:"num_beam_groups" json:"num_beam_groups"`
}

// DefaultGenerateParams matches the values remote callers get when they
// leave the knobs unset.
func DefaultGenerateParams() GenerateParams {
	return GenerateParams{
		TopK:               50,
		NumToGenerate:      256,
		NumBeams:           5,
		NoRepeatNgramSize:  2,
		NumReturnSequences: 1,
		TopP:               0.95,
		Temperature:        1.0,
		RepetitionPenalty:  1.0,
		LengthPenalty:      1.0,
		MaxTime:            150,
		NumBeamGroups:      1,
	}
}

// callEnvelope holds the state every call variant shares.
type callEnvelope struct {
	input          *Tensor
	output         *Tensor
	timeoutSeconds float64
	inputCodec     CodecKind
	outputCodec    CodecKind
}

func (c *callEnvelope) Input() *Tensor { return c.input }

func (c *callEnvelope) Output() *Tensor { return c.output }

func (c *callEnvelope) SetOutput(t *Tensor) error {
	if c.output != nil {
		return ErrOutputAlreadySet
	}
	c.output = t
	return nil
}

func (c *callEnvelope) InputShape() []int64 {
	if c.input == nil {
		return nil
	}
	return c.input.Shape
}

func (c *callEnvelope) OutputShape() []int64 {
	if c.output == nil {
		return nil
	}
	return c.output.Shape
}

// readResponse checks the return code before any payload work, then decodes
// the output through the selected codec into the write-once slot.
func (c *callEnvelope) readResponse(resp *WireResponse) error {
	if resp.ReturnCode != CodeSuccess {
		return ErrRemoteFailure.Wrapf("%s: %s", resp.ReturnCode, resp.Message)
	}
	codec, err := CodecFor(c.outputCodec)
	if err != nil {
		return err
	}
	out, err := codec.Deserialize(resp.SerializedOutput)
	if err != nil {
		return err
	}
	return c.SetOutput(out)
}

func (c *callEnvelope) wireRequest(kind Kind, params *GenerateParams) (*WireRequest, error) {
	codec, err := CodecFor(c.inputCodec)
	if err != nil {
		return nil, err
	}
	serialized, err := codec.Serialize(c.input)
	if err != nil {
		return nil, err
	}
	return &WireRequest{
		Kind:            kind,
		SerializedInput: serialized,
		InputCodec:      c.inputCodec,
		OutputCodec:     c.outputCodec,
		TimeoutSeconds:  c.timeoutSeconds,
		Generate:        params,
	}, nil
}

// LastHiddenStateCall requests the model's final hidden states for a token
// batch.
type LastHiddenStateCall struct {
	callEnvelope
}

func NewLastHiddenStateCall(input *Tensor, timeoutSeconds float64) *LastHiddenStateCall {
	return &LastHiddenStateCall{callEnvelope{
		input:          input,
		timeoutSeconds: timeoutSeconds,
		inputCodec:     CodecMsgpack,
		outputCodec:    CodecMsgpack,
	}}
}

func (c *LastHiddenStateCall) Kind() Kind { return TextLastHiddenState }

func (c *LastHiddenStateCall) WireRequest() (*WireRequest, error) {
	return c.wireRequest(TextLastHiddenState, nil)
}

func (c *LastHiddenStateCall) ReadWireResponse(resp *WireResponse) error {
	return c.readResponse(resp)
}

// CausalLMCall requests next-token logits for a token batch.
type CausalLMCall struct {
	callEnvelope
}

func NewCausalLMCall(input *Tensor, timeoutSeconds float64) *CausalLMCall {
	return &CausalLMCall{callEnvelope{
		input:          input,
		timeoutSeconds: timeoutSeconds,
		inputCodec:     CodecMsgpack,
		outputCodec:    CodecMsgpack,
	}}
}

func (c *CausalLMCall) Kind() Kind { return TextCausalLM }

func (c *CausalLMCall) WireRequest() (*WireRequest, error) {
	return c.wireRequest(TextCausalLM, nil)
}

func (c *CausalLMCall) ReadWireResponse(resp *WireResponse) error {
	return c.readResponse(resp)
}

// Seq2SeqCall requests generated continuations for a text prompt.
type Seq2SeqCall struct {
	callEnvelope
	Generate GenerateParams
}

func NewSeq2SeqCall(input *Tensor, timeoutSeconds float64, params GenerateParams) *Seq2SeqCall {
	return &Seq2SeqCall{
		callEnvelope: callEnvelope{
			input:          input,
			timeoutSeconds: timeoutSeconds,
			inputCodec:     CodecMsgpack,
			outputCodec:    CodecMsgpack,
		},
		Generate: params,
	}
}

func (c *Seq2SeqCall) Kind() Kind { return TextSeq2Seq }

func (c *Seq2SeqCall) WireRequest() (*WireRequest, error) {
	params := c.Generate
	return c.wireRequest(TextSeq2Seq, &params)
}

func (c *Seq2SeqCall) ReadWireResponse(resp *WireResponse) error {
	return c.readResponse(resp)
}
