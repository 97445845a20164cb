package synapse

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Dtype says which payload slice of a Tensor is authoritative.
type Dtype string

const (
	DtypeFloat64 Dtype = "float64"
	DtypeInt64   Dtype = "int64"
)

// Tensor is the wire payload value: a flat buffer plus a shape. Integer
// tensors (token ids) round-trip bit-for-bit through every codec.
type Tensor struct {
	Shape  []int64   `msgpack:"shape" json:"shape"`
	Dtype  Dtype     `msgpack:"dtype" json:"dtype"`
	Floats []float64 `msgpack:"floats,omitempty" json:"floats,omitempty"`
	Ints   []int64   `msgpack:"ints,omitempty" json:"ints,omitempty"`
}

func FloatTensor(shape []int64, data []float64) *Tensor {
	return &Tensor{Shape: shape, Dtype: DtypeFloat64, Floats: data}
}

func IntTensor(shape []int64, data []int64) *Tensor {
	return &Tensor{Shape: shape, Dtype: DtypeInt64, Ints: data}
}

// NumElements multiplies out the shape.
func (t *Tensor) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// CodecKind selects a tensor serializer per payload direction.
type CodecKind string

const (
	CodecMsgpack CodecKind = "msgpack"
	CodecJSON    CodecKind = "json"
)

// Codec encodes tensors for transit. Implementations must be stateless so a
// single instance can be shared across requests.
type Codec interface {
	Kind() CodecKind
	Serialize(t *Tensor) ([]byte, error)
	Deserialize(data []byte) (*Tensor, error)
}

type msgpackCodec struct{}

func (msgpackCodec) Kind() CodecKind { return CodecMsgpack }

func (msgpackCodec) Serialize(t *Tensor) ([]byte, error) {
	return msgpack.Marshal(t)
}

func (msgpackCodec) Deserialize(data []byte) (*Tensor, error) {
	var t Tensor
	if err := msgpack.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

type jsonCodec struct{}

func (jsonCodec) Kind() CodecKind { return CodecJSON }

func (jsonCodec) Serialize(t *Tensor) ([]byte, error) {
	return json.Marshal(t)
}

func (jsonCodec) Deserialize(data []byte) (*Tensor, error) {
	var t Tensor
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

var codecs = map[CodecKind]Codec{
	CodecMsgpack: msgpackCodec{},
	CodecJSON:    jsonCodec{},
}

// CodecFor resolves a codec selector carried on the wire.
func CodecFor(kind CodecKind) (Codec, error) {
	if kind == "" {
		kind = CodecMsgpack
	}
	c, ok := codecs[kind]
	if !ok {
		return nil, ErrUnknownCodec.Wrapf("%q", kind)
	}
	return c, nil
}
