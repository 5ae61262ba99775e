// Copyright 2024 recommenders Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package newsrec

import (
	"github.com/samber/lo"
)

// State is the lifecycle state of a training run.
type State int

const (
	// StateRunning means training proceeds at the base learning rate.
	StateRunning State = iota
	// StateFineTuning means the learning rate has been decayed once.
	StateFineTuning
	// StateStopped means training terminated before the configured epochs.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFineTuning:
		return "fine_tuning"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Action is the decision emitted after observing one epoch of the monitored
// metric.
type Action int

const (
	// ActionContinue keeps training unchanged.
	ActionContinue Action = iota
	// ActionFineStep decays the learning rate and keeps training.
	ActionFineStep
	// ActionStop terminates training.
	ActionStop
)

// StoppingPolicy tracks the recent history of a monitored metric and decides
// when to decay the learning rate and when to stop. The history holds at most
// the configured patience of values, oldest evicted first.
type StoppingPolicy struct {
	earlyStopping *EarlyStoppingConfig
	fineStep      *FineStepConfig
	history       []float32
	state         State
}

func NewStoppingPolicy(earlyStopping *EarlyStoppingConfig, fineStep *FineStepConfig) *StoppingPolicy {
	return &StoppingPolicy{
		earlyStopping: earlyStopping,
		fineStep:      fineStep,
		state:         StateRunning,
	}
}

func (p *StoppingPolicy) State() State {
	return p.state
}

// History returns a copy of the retained metric values, oldest first.
func (p *StoppingPolicy) History() []float32 {
	history := make([]float32, len(p.history))
	copy(history, p.history)
	return history
}

// FineStepDue reports whether the scheduled learning rate decay fires at this
// epoch. The schedule is unconditional: it fires exactly at its configured
// epoch whatever the metric history looks like.
func (p *StoppingPolicy) FineStepDue(epoch int) bool {
	if p.fineStep == nil || p.state == StateStopped {
		return false
	}
	if epoch == p.fineStep.FromEpoch {
		if p.state == StateRunning {
			p.state = StateFineTuning
		}
		return true
	}
	return false
}

// Observe records the monitored metric of one epoch and returns the decision.
// A plateau is an observation below the smallest retained value plus delta.
// An empty history never counts as a plateau. A stop decision freezes the
// history.
func (p *StoppingPolicy) Observe(epoch int, value float32) Action {
	if p.earlyStopping == nil {
		return ActionContinue
	}
	if p.state == StateStopped {
		return ActionStop
	}
	if epoch >= p.earlyStopping.StartFromEpoch && len(p.history) > 0 &&
		value < lo.Min(p.history)+p.earlyStopping.Delta {
		if p.fineStep != nil && epoch < p.fineStep.FromEpoch {
			p.state = StateFineTuning
			p.push(value)
			return ActionFineStep
		}
		p.state = StateStopped
		return ActionStop
	}
	p.push(value)
	return ActionContinue
}

func (p *StoppingPolicy) push(value float32) {
	if len(p.history) >= p.earlyStopping.Patience {
		p.history = p.history[1:]
	}
	p.history = append(p.history, value)
}
