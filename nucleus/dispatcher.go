package nucleus

import (
	"fmt"

	"neurond/logging"
	"neurond/synapse"
)

// gradEpsilon guards the gradient normalization against near-zero sums.
const gradEpsilon = 1e-5

// DispatchResult is the per-item outcome of a backward dispatch, in batch
// order.
type DispatchResult struct {
	Code    synapse.ReturnCode
	Message string
}

// Dispatch applies remote-supplied gradients to the model, one batch item
// at a time. The whole batch runs inside the single update critical
// section. Item failures are contained: a missing callback yields
// NotImplemented, any other failure yields UnknownException, and neither
// stops the remaining items. Dispatch never returns an error to its
// caller.
//
// When remote training is disabled the call is a no-op returning an empty
// result.
func (e *Engine) Dispatch(inputs, grads []*synapse.Tensor, requests []CallSpec) []DispatchResult {
	if !e.remoteTrain {
		return []DispatchResult{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	results := make([]DispatchResult, 0, len(requests))
	for i, req := range requests {
		results = append(results, e.dispatchItem(i, inputs, grads, req))
	}
	return results
}

func (e *Engine) dispatchItem(i int, inputs, grads []*synapse.Tensor, req CallSpec) DispatchResult {
	cb, ok := e.callbacks[req.Kind]
	if !ok {
		return DispatchResult{Code: synapse.CodeNotImplemented, Message: "Not Implemented"}
	}
	if i >= len(inputs) || i >= len(grads) {
		return unknownException(fmt.Errorf("batch item %d has no input or gradient", i))
	}

	out, err := cb(inputs[i], req)
	if err != nil {
		return unknownException(err)
	}

	norm, err := normalizeGradient(grads[i])
	if err != nil {
		return unknownException(err)
	}
	if err := out.Backward(norm); err != nil {
		return unknownException(err)
	}

	e.gradCount += sampleCount(inputs[i])
	return DispatchResult{Code: synapse.CodeSuccess, Message: "Success"}
}

func unknownException(err error) DispatchResult {
	logging.Debug("backward dispatch item failed", logging.Training, "error", err)
	return DispatchResult{Code: synapse.CodeUnknownException, Message: err.Error()}
}

// normalizeGradient divides a gradient by its sum plus a small epsilon,
// bounding the blow-up on near-zero gradient sums.
func normalizeGradient(grad *synapse.Tensor) ([]float64, error) {
	if grad == nil || grad.Dtype != synapse.DtypeFloat64 {
		return nil, fmt.Errorf("gradient must be a float tensor")
	}
	var sum float64
	for _, g := range grad.Floats {
		sum += g
	}
	norm := make([]float64, len(grad.Floats))
	for i, g := range grad.Floats {
		norm[i] = g / (sum + gradEpsilon)
	}
	return norm, nil
}

// sampleCount is the leading dimension of a batch item.
func sampleCount(input *synapse.Tensor) int64 {
	if input == nil || len(input.Shape) == 0 {
		return 0
	}
	return input.Shape[0]
}
