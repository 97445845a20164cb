package axon

import (
	"sync"
	"time"

	"neurond/logging"
	"neurond/metagraph"
	"neurond/minerconfig"
	"neurond/synapse"
)

// CheckResult is the tagged outcome of one admission policy.
type CheckResult struct {
	Policy   string
	Rejected bool
	Reason   string
}

func accept(policy string) CheckResult {
	return CheckResult{Policy: policy}
}

func reject(policy, reason string) CheckResult {
	return CheckResult{Policy: policy, Rejected: true, Reason: reason}
}

// AdmissionController gates inbound requests through an ordered policy
// chain: registration, stake, validator standing, rate limit. The chain and
// each policy are independently switchable; with everything off (the
// default) no caller is ever rejected.
type AdmissionController struct {
	cfg               minerconfig.BlacklistConfig
	meta              *metagraph.Metagraph
	minAllowedWeights int

	mu       sync.Mutex
	lastSeen map[string]time.Time
	now      func() time.Time
}

func NewAdmissionController(cfg minerconfig.BlacklistConfig, meta *metagraph.Metagraph, minAllowedWeights int) *AdmissionController {
	return &AdmissionController{
		cfg:               cfg,
		meta:              meta,
		minAllowedWeights: minAllowedWeights,
		lastSeen:          make(map[string]time.Time),
		now:               time.Now,
	}
}

// IsBlacklisted runs the policy chain for one request, short-circuiting on
// the first rejection.
func (a *AdmissionController) IsBlacklisted(hotkey string, kind synapse.Kind) bool {
	if !a.cfg.Enabled {
		return false
	}

	checks := []struct {
		enabled bool
		run     func(string) CheckResult
	}{
		{a.cfg.RegistrationCheck, a.registrationCheck},
		{a.cfg.StakeCheck, a.stakeCheck},
		{a.cfg.ValidatorCheck, a.validatorCheck},
		{a.cfg.RateLimitCheck, a.rateLimitCheck},
	}
	for _, check := range checks {
		if !check.enabled {
			continue
		}
		result := check.run(hotkey)
		if result.Rejected {
			logging.Debug("request blacklisted", logging.Admission,
				"hotkey", hotkey, "kind", kind, "policy", result.Policy, "reason", result.Reason)
			return true
		}
	}
	return false
}

func (a *AdmissionController) registrationCheck(hotkey string) CheckResult {
	if _, ok := a.meta.UID(hotkey); ok {
		return accept("registration")
	}
	if a.cfg.AllowNonRegistered {
		return accept("registration")
	}
	return reject("registration", "hotkey not registered")
}

func (a *AdmissionController) stakeCheck(hotkey string) CheckResult {
	uid, ok := a.meta.UID(hotkey)
	if !ok {
		return reject("stake", "hotkey not registered")
	}
	neuron, ok := a.meta.Neuron(uid)
	if !ok || neuron.Stake < a.cfg.MinStake {
		return reject("stake", "stake below minimum")
	}
	return accept("stake")
}

func (a *AdmissionController) validatorCheck(hotkey string) CheckResult {
	uid, ok := a.meta.UID(hotkey)
	if !ok {
		return reject("validator", "hotkey not registered")
	}
	if a.meta.OutgoingWeightCount(uid) >= a.minAllowedWeights {
		return accept("validator")
	}
	return reject("validator", "not an active validator")
}

// rateLimitCheck enforces a per-hotkey cooldown window. Every invocation
// overwrites the stored timestamp with its own call time, accepted or not,
// so a caller that floods inside the window keeps pushing its own cooldown
// forward and never ages back into acceptance.
func (a *AdmissionController) rateLimitCheck(hotkey string) CheckResult {
	window := time.Duration(a.cfg.RateLimitSeconds) * time.Second

	a.mu.Lock()
	defer a.mu.Unlock()

	current := a.now()
	prev, seen := a.lastSeen[hotkey]
	a.lastSeen[hotkey] = current

	if !seen {
		return accept("rate_limit")
	}
	if current.Sub(prev) >= window {
		return accept("rate_limit")
	}
	return reject("rate_limit", "request inside cooldown window")
}
