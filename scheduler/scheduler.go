// Package scheduler drives the miner's epoch loop. Each epoch spans a
// fixed number of ledger blocks; within it the scheduler trains locally
// (or just waits), folds accumulated gradients into the model, reports
// telemetry and periodically commits weights back to the ledger.
package scheduler

import (
	"context"
	"time"

	"neurond/chainclient"
	"neurond/logging"
	"neurond/metagraph"
	"neurond/metrics"
	"neurond/minerconfig"
	"neurond/nucleus"
	"neurond/synapse"
)

// ChainClient is the slice of the ledger client the scheduler needs.
type ChainClient interface {
	CurrentBlock(ctx context.Context) (int64, error)
	NeuronForKey(ctx context.Context, hotkey string) (chainclient.PeerRecord, error)
	SetWeights(ctx context.Context, uids []int64, weights []float64, waitForInclusion bool) (bool, error)
}

// Dataset yields training batches for local epochs.
type Dataset interface {
	Next(ctx context.Context) (*synapse.Tensor, error)
}

// HeightRecorder persists the last block the scheduler has processed.
type HeightRecorder interface {
	SetHeight(height int64) error
}

type Params struct {
	Config    minerconfig.NeuronConfig
	Hotkey    string
	BlockTime time.Duration
	Chain     ChainClient
	Meta      *metagraph.Metagraph
	Engine    *nucleus.Engine
	Data      Dataset
	Sink      metrics.Sink
	Heights   HeightRecorder
	Phases    *PhaseTracker
}

type Scheduler struct {
	cfg       minerconfig.NeuronConfig
	hotkey    string
	blockTime time.Duration
	chain     ChainClient
	meta      *metagraph.Metagraph
	engine    *nucleus.Engine
	data      Dataset
	sink      metrics.Sink
	heights   HeightRecorder
	phases    *PhaseTracker

	lastCommitBlock int64
}

func New(params Params) *Scheduler {
	blockTime := params.BlockTime
	if blockTime <= 0 {
		blockTime = 12 * time.Second
	}
	phases := params.Phases
	if phases == nil {
		phases = NewPhaseTracker()
	}
	return &Scheduler{
		cfg:       params.Config,
		hotkey:    params.Hotkey,
		blockTime: blockTime,
		chain:     params.Chain,
		meta:      params.Meta,
		engine:    params.Engine,
		data:      params.Data,
		sink:      params.Sink,
		heights:   params.Heights,
		phases:    phases,
	}
}

// Phases exposes the epoch phase tracker for status reporting.
func (s *Scheduler) Phases() *PhaseTracker {
	return s.phases
}

// Run executes epochs until the context is cancelled. A failed epoch is
// logged and the loop moves on to the next one; only cancellation (or an
// unreachable ledger at startup) ends the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	block, err := s.chain.CurrentBlock(ctx)
	if err != nil {
		return err
	}
	s.lastCommitBlock = block

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runEpoch(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Error("Epoch failed", logging.Epoch, "error", err)
		}
	}
}

type epochStats struct {
	lossSum    float64
	iterations int
}

func (s *Scheduler) runEpoch(ctx context.Context) error {
	start, err := s.chain.CurrentBlock(ctx)
	if err != nil {
		return err
	}
	record, err := s.chain.NeuronForKey(ctx, s.hotkey)
	if err != nil {
		return err
	}
	end := start + s.cfg.BlocksPerEpoch
	s.phases.enter(PhaseStarting, start)
	logging.Info("Epoch started", logging.Epoch,
		"startBlock", start, "endBlock", end, "uid", record.Uid)

	stats, current, err := s.trainOrWait(ctx, start, end)
	if err != nil {
		return err
	}

	s.phases.enter(PhaseUpdating, current)
	updated := s.maybeUpdate(stats)

	var avgLoss *float64
	if stats.iterations > 0 {
		avg := stats.lossSum / float64(stats.iterations)
		avgLoss = &avg
		if updated {
			saved, err := s.engine.SaveIfBest(avg, s.cfg.CheckpointPath)
			if err != nil {
				logging.Error("Checkpoint save failed", logging.Epoch, "error", err)
			} else if saved {
				logging.Info("Checkpoint saved", logging.Epoch,
					"loss", avg, "path", s.cfg.CheckpointPath)
			}
		}
	}

	s.report(current, record, avgLoss)

	if current-s.lastCommitBlock > s.cfg.BlocksPerSetWeights {
		s.phases.enter(PhaseCommitting, current)
		s.lastCommitBlock = current
		s.commitWeights(ctx)
		if err := s.meta.Sync(ctx); err != nil {
			logging.Error("Metagraph sync failed", logging.Epoch, "error", err)
		}
	}

	if s.heights != nil {
		if err := s.heights.SetHeight(current); err != nil {
			logging.Error("Height checkpoint failed", logging.Epoch, "error", err)
		}
	}
	s.phases.epochFinished(current)
	return nil
}

// trainOrWait advances through [start, end). With local training enabled
// it runs one step per observed block change; otherwise it just polls the
// ledger until the epoch's block range has passed.
func (s *Scheduler) trainOrWait(ctx context.Context, start, end int64) (epochStats, int64, error) {
	stats := epochStats{}
	current := start
	last := start

	if s.cfg.LocalTrain {
		s.phases.enter(PhaseTraining, start)
	} else {
		s.phases.enter(PhaseWaiting, start)
	}

	for current < end {
		if err := ctx.Err(); err != nil {
			return stats, current, err
		}

		block, err := s.chain.CurrentBlock(ctx)
		if err != nil {
			logging.Warn("Block poll failed", logging.Epoch, "error", err)
			if err := s.sleep(ctx, s.blockTime); err != nil {
				return stats, current, err
			}
			continue
		}
		current = block

		if !s.cfg.LocalTrain {
			if current < end {
				if err := s.sleep(ctx, s.blockTime); err != nil {
					return stats, current, err
				}
			}
			continue
		}

		if current == last {
			if err := s.sleep(ctx, s.blockTime/4); err != nil {
				return stats, current, err
			}
			continue
		}
		last = current

		batch, err := s.data.Next(ctx)
		if err != nil {
			return stats, current, err
		}
		loss, err := s.engine.TrainStep(batch)
		if err != nil {
			logging.Error("Training step failed", logging.Epoch, "error", err)
			continue
		}
		stats.lossSum += loss
		stats.iterations++
		logging.Info("Local training step", logging.Epoch,
			"block", current, "iteration", stats.iterations, "loss", loss)
	}
	return stats, current, nil
}

// maybeUpdate applies the optimizer when the epoch produced local steps
// or remote peers pushed gradients. Reports whether an update happened.
func (s *Scheduler) maybeUpdate(stats epochStats) bool {
	gradCount := s.engine.GradientCount()
	localWork := s.cfg.LocalTrain && stats.iterations > 0
	remoteWork := s.cfg.RemoteTrain && gradCount > 0
	if !localWork && !remoteWork {
		return false
	}

	lr := s.engine.Update()
	logging.Info("Parameters updated", logging.Epoch,
		"learningRate", lr, "localSteps", stats.iterations, "remoteGradients", gradCount)
	return true
}

func (s *Scheduler) report(block int64, record chainclient.PeerRecord, avgLoss *float64) {
	fields := map[string]any{
		"stake":     record.Stake,
		"rank":      record.Rank,
		"trust":     record.Trust,
		"consensus": record.Consensus,
		"incentive": record.Incentive,
		"emission":  record.Emission,
	}
	if avgLoss != nil {
		fields["local/loss"] = *avgLoss
	}
	if err := s.sink.Record(block, fields); err != nil {
		logging.Error("Metrics record failed", logging.Metrics, "error", err)
	}
}

// commitWeights submits a self-weight of 1.0. Failures are logged and
// swallowed; the next commit window will try again.
func (s *Scheduler) commitWeights(ctx context.Context) {
	uid, ok := s.meta.UID(s.hotkey)
	if !ok {
		logging.Warn("Own hotkey not in metagraph, skipping weight commit", logging.Epoch,
			"hotkey", s.hotkey)
		return
	}

	uids := s.meta.Uids()
	weights := make([]float64, len(uids))
	weights[uid] = 1.0

	included, err := s.chain.SetWeights(ctx, uids, weights, false)
	if err != nil {
		logging.Error("Weight commit failed", logging.Epoch, "error", err)
		return
	}
	if !included {
		logging.Error("Weight commit not included", logging.Epoch, "uid", uid)
		return
	}
	logging.Info("Weights committed", logging.Epoch, "uid", uid, "neurons", len(uids))
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = time.Millisecond
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
