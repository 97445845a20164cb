package minerconfig

// Config is the full configuration tree of the miner daemon. It is loaded
// from YAML and overridable through NEURON_ prefixed environment variables.
type Config struct {
	Axon          AxonConfig      `koanf:"axon"`
	ChainNode     ChainNodeConfig `koanf:"chain_node"`
	Neuron        NeuronConfig    `koanf:"neuron"`
	Dataset       DatasetConfig   `koanf:"dataset"`
	Metrics       MetricsConfig   `koanf:"metrics"`
	MetagraphPath string          `koanf:"metagraph_path"`

	// CurrentHeight is runtime state written back by the scheduler so a
	// restarted daemon can report where it left off.
	CurrentHeight int64 `koanf:"current_height"`
}

type AxonConfig struct {
	Port   int    `koanf:"port"`
	Hotkey string `koanf:"hotkey"`
}

type ChainNodeConfig struct {
	Url string `koanf:"url"`
	// BlockTimeSeconds approximates the ledger's block production period.
	// The scheduler sleeps in increments of it while idling out an epoch.
	BlockTimeSeconds int `koanf:"block_time_seconds"`
}

type NeuronConfig struct {
	BlocksPerEpoch      int64   `koanf:"blocks_per_epoch"`
	BlocksPerSetWeights int64   `koanf:"blocks_per_set_weights"`
	LocalTrain          bool    `koanf:"local_train"`
	RemoteTrain         bool    `koanf:"remote_train"`
	Restart             bool    `koanf:"restart"`
	CheckpointPath      string  `koanf:"checkpoint_path"`
	LearningRate        float64 `koanf:"learning_rate"`
	Momentum            float64 `koanf:"momentum"`
	ModelDim            int     `koanf:"model_dim"`
	ModelSeed           int64   `koanf:"model_seed"`

	Blacklist BlacklistConfig `koanf:"blacklist"`
}

// BlacklistConfig switches the admission policy chain on and off. The chain
// and every sub-check default to disabled, matching the network's current
// open-admission posture. Each check can be enabled independently once
// operators want to start gating traffic.
type BlacklistConfig struct {
	Enabled bool `koanf:"enabled"`

	RegistrationCheck  bool    `koanf:"registration_check"`
	AllowNonRegistered bool    `koanf:"allow_non_registered"`
	StakeCheck         bool    `koanf:"stake_check"`
	MinStake           float64 `koanf:"min_stake"`
	ValidatorCheck     bool    `koanf:"validator_check"`
	RateLimitCheck     bool    `koanf:"rate_limit_check"`
	RateLimitSeconds   int     `koanf:"rate_limit_seconds"`
}

type DatasetConfig struct {
	Seed        int64 `koanf:"seed"`
	BatchSize   int   `koanf:"batch_size"`
	SequenceLen int   `koanf:"sequence_len"`
	VocabSize   int   `koanf:"vocab_size"`
}

type MetricsConfig struct {
	Path string `koanf:"path"`
}

// DefaultConfig mirrors the defaults the daemon ships with. Everything here
// can be overridden from the config file or environment.
func DefaultConfig() Config {
	return Config{
		Axon: AxonConfig{
			Port: 8091,
		},
		ChainNode: ChainNodeConfig{
			Url:              "http://localhost:9944",
			BlockTimeSeconds: 12,
		},
		Neuron: NeuronConfig{
			BlocksPerEpoch:      100,
			BlocksPerSetWeights: 100,
			LocalTrain:          true,
			RemoteTrain:         true,
			CheckpointPath:      "model.ckpt",
			LearningRate:        0.1,
			Momentum:            0.8,
			ModelDim:            256,
			ModelSeed:           1,
			Blacklist: BlacklistConfig{
				RateLimitSeconds: 2,
			},
		},
		Dataset: DatasetConfig{
			Seed:        1,
			BatchSize:   10,
			SequenceLen: 64,
			VocabSize:   50258,
		},
		MetagraphPath: "metagraph.db",
	}
}
