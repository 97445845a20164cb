package nucleus

import (
	"sync"

	"neurond/logging"
	"neurond/synapse"
)

// CallSpec names the synapse kind a callback is invoked for, plus the
// generation parameters when the kind has them.
type CallSpec struct {
	Kind     synapse.Kind
	Generate *synapse.GenerateParams
}

// SynapseCallback computes a forward output for one batch item. Callbacks
// run inside the engine's critical section and must not take the lock
// themselves.
type SynapseCallback func(input *synapse.Tensor, spec CallSpec) (*Output, error)

// Engine owns the shared mutable model state. A single mutex serializes
// every read-then-mutate section: local training steps, the optimizer step
// and the remote backward dispatch. The gradient counter lives under the
// same lock so update accounting can never interleave with a half-applied
// dispatch.
type Engine struct {
	mu sync.Mutex

	model       *Model
	opt         *SGD
	gradCount   int64
	remoteTrain bool
	baseLR      float64
	callbacks   map[synapse.Kind]SynapseCallback
}

func NewEngine(model *Model, lr, momentum float64, remoteTrain bool) *Engine {
	return &Engine{
		model:       model,
		opt:         NewSGD(lr, momentum, model.Params()),
		remoteTrain: remoteTrain,
		baseLR:      lr,
		callbacks:   make(map[synapse.Kind]SynapseCallback),
	}
}

// RegisterCallback binds a compute callback to a synapse kind. The mapping
// is built at startup, before any serving begins.
func (e *Engine) RegisterCallback(kind synapse.Kind, cb SynapseCallback) {
	e.callbacks[kind] = cb
}

// RegisterModelCallbacks binds the model-backed callbacks for the given
// kinds.
func (e *Engine) RegisterModelCallbacks(kinds ...synapse.Kind) {
	for _, kind := range kinds {
		switch kind {
		case synapse.TextLastHiddenState:
			e.RegisterCallback(kind, func(input *synapse.Tensor, _ CallSpec) (*Output, error) {
				return e.model.HiddenState(input)
			})
		case synapse.TextCausalLM:
			e.RegisterCallback(kind, func(input *synapse.Tensor, _ CallSpec) (*Output, error) {
				return e.model.CausalLM(input)
			})
		case synapse.TextSeq2Seq:
			e.RegisterCallback(kind, func(input *synapse.Tensor, spec CallSpec) (*Output, error) {
				params := synapse.DefaultGenerateParams()
				if spec.Generate != nil {
					params = *spec.Generate
				}
				return e.model.Generate(input, params)
			})
		}
	}
}

// Forward serves one inference request. It holds the update lock so a
// caller never reads parameters mid-update.
func (e *Engine) Forward(input *synapse.Tensor, spec CallSpec) (*synapse.Tensor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cb, ok := e.callbacks[spec.Kind]
	if !ok {
		return nil, synapse.ErrNotImplemented.Wrapf("%s", spec.Kind)
	}
	out, err := cb(input, spec)
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

// TrainStep runs one local training step under the update lock and returns
// its loss.
func (e *Engine) TrainStep(batch *synapse.Tensor) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.TrainStep(batch)
}

// GradientCount reports how many samples have received a remote backward
// pass since the last parameter update.
func (e *Engine) GradientCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gradCount
}

// Update applies one optimizer step: adaptive learning rate, global-norm
// clip at 1.0, step, gradient zeroing and counter reset, all inside one
// critical section. Returns the learning rate used.
func (e *Engine) Update() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	lr := e.baseLR
	if e.gradCount > 0 {
		lr = e.baseLR / float64(e.gradCount)
	}
	e.opt.LR = lr

	params := e.model.Params()
	norm := clipGradNorm(params, 1.0)
	e.opt.Step(params)
	e.opt.ZeroGrad(params)
	e.gradCount = 0

	logging.Debug("parameters updated", logging.Training, "lr", lr, "grad_norm", norm)
	return lr
}

// SaveIfBest persists a checkpoint when avgLoss strictly improves the best
// loss on record. Returns whether a checkpoint was written.
func (e *Engine) SaveIfBest(avgLoss float64, path string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if avgLoss >= e.model.BestLoss {
		return false, nil
	}
	e.model.BestLoss = avgLoss
	if err := e.model.Save(path); err != nil {
		return false, err
	}
	return true, nil
}

// BestLoss returns the persisted best epoch-average loss.
func (e *Engine) BestLoss() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.BestLoss
}

// LoadCheckpoint restores model state from path under the update lock.
func (e *Engine) LoadCheckpoint(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Load(path)
}
