package chainclient

// PeerRecord is the registry's view of one peer. The daemon treats every
// field as read-only; liveness bookkeeping for admission control happens
// miner-side, keyed by hotkey.
type PeerRecord struct {
	Hotkey       string  `json:"hotkey"`
	Uid          int64   `json:"uid"`
	Stake        float64 `json:"stake"`
	Rank         float64 `json:"rank"`
	Trust        float64 `json:"trust"`
	Consensus    float64 `json:"consensus"`
	Incentive    float64 `json:"incentive"`
	Emission     float64 `json:"emission"`
	IsRegistered bool    `json:"is_registered"`
}

// ChainParams are the subnet hyperparameters the miner consumes.
type ChainParams struct {
	MinAllowedWeights int   `json:"min_allowed_weights"`
	N                 int64 `json:"n"`
}

// MetagraphSnapshot is one consistent read of the whole registry state.
type MetagraphSnapshot struct {
	Block   int64        `json:"block"`
	Neurons []PeerRecord `json:"neurons"`
	// Weights[uid] holds the peer's outgoing weight row, indexed by uid.
	Weights [][]float64 `json:"weights"`
}

type blockResponse struct {
	Height int64 `json:"height"`
}

type setWeightsRequest struct {
	Uids             []int64   `json:"uids"`
	Weights          []float64 `json:"weights"`
	WaitForInclusion bool      `json:"wait_for_inclusion"`
}

type setWeightsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
