package synapse

// WireRequest is the JSON body of a forward call. Tensor payloads are
// pre-serialized through the selected codec and travel as opaque bytes
// (base64 under encoding/json).
type WireRequest struct {
	RequestId       string          `json:"request_id,omitempty"`
	Kind            Kind            `json:"kind"`
	SerializedInput []byte          `json:"serialized_input"`
	InputCodec      CodecKind       `json:"input_codec"`
	OutputCodec     CodecKind       `json:"output_codec"`
	TimeoutSeconds  float64         `json:"timeout_seconds,omitempty"`
	Generate        *GenerateParams `json:"generate,omitempty"`
}

// WireResponse carries the outcome of a forward call. The return code is
// authoritative: a non-success code means SerializedOutput is garbage and
// Message holds the server's explanation.
type WireResponse struct {
	ReturnCode       ReturnCode `json:"return_code"`
	Message          string     `json:"message"`
	SerializedOutput []byte     `json:"serialized_output,omitempty"`
}

// SuccessResponse encodes an output tensor with the given codec and wraps it
// in a success envelope.
func SuccessResponse(output *Tensor, codecKind CodecKind) (*WireResponse, error) {
	codec, err := CodecFor(codecKind)
	if err != nil {
		return nil, err
	}
	serialized, err := codec.Serialize(output)
	if err != nil {
		return nil, err
	}
	return &WireResponse{
		ReturnCode:       CodeSuccess,
		Message:          "Success",
		SerializedOutput: serialized,
	}, nil
}

// FailureResponse wraps an error in a non-success envelope.
func FailureResponse(code ReturnCode, err error) *WireResponse {
	msg := code.String()
	if err != nil {
		msg = err.Error()
	}
	return &WireResponse{ReturnCode: code, Message: msg}
}

// BackwardWireRequest is the JSON body of a backward call: one input and one
// gradient tensor per batch item, plus the synapse descriptors the items
// belong to.
type BackwardWireRequest struct {
	RequestId   string            `json:"request_id,omitempty"`
	Inputs      [][]byte          `json:"inputs"`
	Gradients   [][]byte          `json:"gradients"`
	Requests    []BackwardRequest `json:"requests"`
	InputCodec  CodecKind         `json:"input_codec"`
	OutputCodec CodecKind         `json:"output_codec"`
}

// BackwardRequest describes one batch item of a backward call.
type BackwardRequest struct {
	Kind     Kind            `json:"kind"`
	Generate *GenerateParams `json:"generate,omitempty"`
}

// BackwardWireResponse reports per-item outcomes in batch order.
type BackwardWireResponse struct {
	Codes    []ReturnCode `json:"return_codes"`
	Messages []string     `json:"messages"`
}
