// SPDX-License-Identifier: MIT
package audio

func (e *Engine) EnableGate() {
	e.gateEnabled = true
}

func (e *Engine) DisableGate() {
	e.gateEnabled = false
}

// SetGateThreshold adjusts the noise gate threshold.
// The value is an RMS level in the range 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) SetGateThreshold(threshold float64) {
	e.gateThreshold = min(max(threshold, 0), 1)
}

// ApplyGate sets the threshold and enables the gate, or disables it when
// threshold is zero or less.
func (e *Engine) ApplyGate(threshold float64) {
	if threshold <= 0 {
		e.DisableGate()
		return
	}
	e.SetGateThreshold(threshold)
	e.EnableGate()
}

// GetGateThreshold returns the current noise gate threshold.
func (e *Engine) GetGateThreshold() float64 {
	return e.gateThreshold
}

// GateEnabled reports whether quiet batches are being silenced.
func (e *Engine) GateEnabled() bool {
	return e.gateEnabled
}
