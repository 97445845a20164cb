package nucleus

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// checkpointBlob is the opaque on-disk model state.
type checkpointBlob struct {
	VocabSize int       `msgpack:"vocab_size"`
	Dim       int       `msgpack:"dim"`
	Embed     []float64 `msgpack:"embed"`
	Out       []float64 `msgpack:"out"`
	BestLoss  float64   `msgpack:"best_loss"`
}

// Save writes the model state to path. The write goes through a temp file
// and a rename so a crash never leaves a torn checkpoint.
func (m *Model) Save(path string) error {
	blob := checkpointBlob{
		VocabSize: m.VocabSize,
		Dim:       m.Dim,
		Embed:     m.Embed.Data,
		Out:       m.Out.Data,
		BestLoss:  m.BestLoss,
	}
	data, err := msgpack.Marshal(&blob)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load restores model state saved by Save. The checkpoint must match the
// model's dimensions.
func (m *Model) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var blob checkpointBlob
	if err := msgpack.Unmarshal(data, &blob); err != nil {
		return err
	}
	if blob.VocabSize != m.VocabSize || blob.Dim != m.Dim {
		return fmt.Errorf("checkpoint shape %dx%d does not match model %dx%d",
			blob.VocabSize, blob.Dim, m.VocabSize, m.Dim)
	}
	copy(m.Embed.Data, blob.Embed)
	copy(m.Out.Data, blob.Out)
	m.BestLoss = blob.BestLoss
	return nil
}
