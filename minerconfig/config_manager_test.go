package minerconfig_test

import (
	"testing"

	"neurond/minerconfig"

	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/stretchr/testify/require"
)

const testYaml = `
axon:
  port: 8091
  hotkey: "5F3sa2TJAWMqDhXG6jhV4N8ko9SxwGy8TpaNS1repo5EYjQX"
chain_node:
  url: "http://chain-node:9944"
  block_time_seconds: 12
neuron:
  blocks_per_epoch: 100
  blocks_per_set_weights: 100
  local_train: true
  remote_train: true
  checkpoint_path: "/data/model.ckpt"
  blacklist:
    enabled: true
    rate_limit_check: true
    rate_limit_seconds: 5
`

func TestConfigLoad(t *testing.T) {
	testManager := &minerconfig.ConfigManager{
		KoanProvider: rawbytes.Provider([]byte(testYaml)),
	}
	err := testManager.Load()
	require.NoError(t, err)
	require.Equal(t, 8091, testManager.GetConfig().Axon.Port)
	require.Equal(t, "http://chain-node:9944", testManager.GetConfig().ChainNode.Url)
	require.Equal(t, int64(100), testManager.GetConfig().Neuron.BlocksPerEpoch)
	require.True(t, testManager.GetConfig().Neuron.Blacklist.Enabled)
	require.True(t, testManager.GetConfig().Neuron.Blacklist.RateLimitCheck)
	require.Equal(t, 5, testManager.GetConfig().Neuron.Blacklist.RateLimitSeconds)
}

func TestConfigDefaultsApply(t *testing.T) {
	testManager := &minerconfig.ConfigManager{
		KoanProvider: rawbytes.Provider([]byte("axon:\n  port: 9000\n")),
	}
	err := testManager.Load()
	require.NoError(t, err)
	// File value wins where present, defaults fill the rest.
	require.Equal(t, 9000, testManager.GetConfig().Axon.Port)
	require.Equal(t, 12, testManager.GetConfig().ChainNode.BlockTimeSeconds)
	require.Equal(t, 0.1, testManager.GetConfig().Neuron.LearningRate)
	require.False(t, testManager.GetConfig().Neuron.Blacklist.Enabled)
}

type CaptureWriterProvider struct {
	CapturedData string
}

func (c *CaptureWriterProvider) Write(data []byte) (int, error) {
	c.CapturedData += string(data)
	return len(data), nil
}

func (c *CaptureWriterProvider) Close() error {
	return nil
}

func (c *CaptureWriterProvider) GetWriter() minerconfig.WriteCloser {
	return c
}

func TestConfigRoundTrip(t *testing.T) {
	writeCapture := &CaptureWriterProvider{}
	testManager := &minerconfig.ConfigManager{
		KoanProvider:   rawbytes.Provider([]byte(testYaml)),
		WriterProvider: writeCapture,
	}
	err := testManager.Load()
	require.NoError(t, err)

	err = testManager.SetHeight(4242)
	require.NoError(t, err)

	testManager2 := &minerconfig.ConfigManager{
		KoanProvider: rawbytes.Provider([]byte(writeCapture.CapturedData)),
	}
	err = testManager2.Load()
	require.NoError(t, err)
	require.Equal(t, 8091, testManager2.GetConfig().Axon.Port)
	require.Equal(t, int64(4242), testManager2.GetHeight())
	require.Equal(t, "/data/model.ckpt", testManager2.GetConfig().Neuron.CheckpointPath)
}
