package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"neurond/axon"
	"neurond/chainclient"
	"neurond/dataset"
	"neurond/logging"
	"neurond/metagraph"
	"neurond/metrics"
	"neurond/minerconfig"
	"neurond/nucleus"
	"neurond/scheduler"
	"neurond/synapse"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "status" {
		logging.WithNoopLogger(func() (interface{}, error) {
			config, err := minerconfig.LoadDefaultConfigManager()
			if err != nil {
				log.Fatalf("Error loading config: %v", err)
			}
			returnStatus(config)
			return nil, nil
		})

		return
	}

	configManager, err := minerconfig.LoadDefaultConfigManager()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	cfg := configManager.GetConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chain, err := chainclient.NewClientWithRetry(ctx, cfg.ChainNode.Url, 10, 5*time.Second)
	if err != nil {
		logging.Error("Ledger unreachable, giving up", logging.System, "error", err)
		os.Exit(1)
	}

	params, err := chain.Params(ctx)
	if err != nil {
		logging.Error("Failed to get chain params", logging.System, "error", err)
		os.Exit(1)
	}

	meta := metagraph.New(chain)
	store, err := metagraph.OpenStore(cfg.MetagraphPath)
	if err != nil {
		logging.Error("Failed to open metagraph store", logging.Metagraph, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := meta.LoadInto(store); err != nil {
		logging.Warn("No usable metagraph snapshot on disk", logging.Metagraph, "error", err)
	}
	if err := meta.Sync(ctx); err != nil {
		logging.Error("Initial metagraph sync failed", logging.Metagraph, "error", err)
		os.Exit(1)
	}
	if err := meta.SaveTo(store); err != nil {
		logging.Warn("Failed to persist metagraph snapshot", logging.Metagraph, "error", err)
	}

	model := nucleus.NewModel(cfg.Dataset.VocabSize, cfg.Neuron.ModelDim, cfg.Neuron.ModelSeed)
	engine := nucleus.NewEngine(model, cfg.Neuron.LearningRate, cfg.Neuron.Momentum, cfg.Neuron.RemoteTrain)
	engine.RegisterModelCallbacks(
		synapse.TextLastHiddenState,
		synapse.TextCausalLM,
		synapse.TextSeq2Seq,
	)

	if cfg.Neuron.Restart {
		logging.Info("Restart requested, starting from a fresh model", logging.Training,
			"checkpoint", cfg.Neuron.CheckpointPath)
	} else if err := engine.LoadCheckpoint(cfg.Neuron.CheckpointPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("No checkpoint found, starting fresh", logging.Training,
				"checkpoint", cfg.Neuron.CheckpointPath)
		} else {
			logging.Error("Checkpoint load failed", logging.Training, "error", err)
			os.Exit(1)
		}
	} else {
		logging.Info("Checkpoint restored", logging.Training,
			"checkpoint", cfg.Neuron.CheckpointPath, "bestLoss", engine.BestLoss())
	}

	sink, err := metrics.ForPath(cfg.Metrics.Path)
	if err != nil {
		logging.Error("Failed to open metrics sink", logging.Metrics, "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	phases := scheduler.NewPhaseTracker()
	admission := axon.NewAdmissionController(cfg.Neuron.Blacklist, meta, params.MinAllowedWeights)
	server := axon.NewServer(engine, admission, phases)
	addr := fmt.Sprintf(":%v", cfg.Axon.Port)
	logging.Info("Starting axon server", logging.Axon, "addr", addr, "hotkey", cfg.Axon.Hotkey)
	server.Start(addr)
	defer func() {
		if err := server.Shutdown(); err != nil {
			logging.Warn("Axon shutdown error", logging.Axon, "error", err)
		}
	}()

	epochs := scheduler.New(scheduler.Params{
		Config:    cfg.Neuron,
		Hotkey:    cfg.Axon.Hotkey,
		BlockTime: time.Duration(cfg.ChainNode.BlockTimeSeconds) * time.Second,
		Chain:     chain,
		Meta:      meta,
		Engine:    engine,
		Data:      dataset.NewSynthetic(cfg.Dataset),
		Sink:      sink,
		Heights:   configManager,
		Phases:    phases,
	})
	if err := epochs.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("Scheduler stopped", logging.Epoch, "error", err)
		os.Exit(1)
	}
	logging.Info("Shutting down", logging.System)
}

func returnStatus(config *minerconfig.ConfigManager) {
	height := config.GetHeight()
	status := map[string]interface{}{
		"sync_info": map[string]string{
			"latest_block_height": strconv.FormatInt(height, 10),
		},
	}
	jsonData, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(jsonData))
	os.Exit(0)
}
