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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoppingPolicyDisabled(t *testing.T) {
	policy := NewStoppingPolicy(nil, nil)
	for epoch := 1; epoch <= 10; epoch++ {
		assert.Equal(t, ActionContinue, policy.Observe(epoch, 0))
	}
	assert.Equal(t, StateRunning, policy.State())
	assert.False(t, policy.FineStepDue(5))
	assert.Empty(t, policy.History())
}

func TestStoppingPolicyHistoryWindow(t *testing.T) {
	policy := NewStoppingPolicy(&EarlyStoppingConfig{
		Metric:   "auc",
		Patience: 3,
		Delta:    0,
	}, nil)
	values := []float32{0.1, 0.2, 0.3, 0.4, 0.5}
	for epoch, value := range values {
		assert.Equal(t, ActionContinue, policy.Observe(epoch+1, value))
	}
	// oldest values evicted first
	assert.Equal(t, []float32{0.3, 0.4, 0.5}, policy.History())
}

func TestStoppingPolicyPlateau(t *testing.T) {
	policy := NewStoppingPolicy(&EarlyStoppingConfig{
		Metric:   "auc",
		Patience: 3,
		Delta:    0.01,
	}, nil)
	// the first observation never plateaus
	assert.Equal(t, ActionContinue, policy.Observe(1, 0.5))
	// improvement above delta continues
	assert.Equal(t, ActionContinue, policy.Observe(2, 0.6))
	// a drop below the window minimum plus delta stops
	assert.Equal(t, ActionStop, policy.Observe(3, 0.505))
	assert.Equal(t, StateStopped, policy.State())
	// the history is frozen after the stop
	assert.Equal(t, []float32{0.5, 0.6}, policy.History())
	assert.Equal(t, ActionStop, policy.Observe(4, 0.9))
}

func TestStoppingPolicyStartFromEpoch(t *testing.T) {
	policy := NewStoppingPolicy(&EarlyStoppingConfig{
		Metric:         "auc",
		Patience:       2,
		Delta:          0,
		StartFromEpoch: 4,
	}, nil)
	// plateaus before the start epoch are ignored
	assert.Equal(t, ActionContinue, policy.Observe(1, 0.5))
	assert.Equal(t, ActionContinue, policy.Observe(2, 0.1))
	assert.Equal(t, ActionContinue, policy.Observe(3, 0.1))
	assert.Equal(t, ActionStop, policy.Observe(4, 0.05))
}

func TestStoppingPolicyFineStepOnPlateau(t *testing.T) {
	policy := NewStoppingPolicy(&EarlyStoppingConfig{
		Metric:   "auc",
		Patience: 2,
		Delta:    0,
	}, &FineStepConfig{
		FromEpoch: 5,
		Factor:    0.1,
	})
	assert.Equal(t, ActionContinue, policy.Observe(1, 0.5))
	// a plateau before the fine step epoch decays instead of stopping
	assert.Equal(t, ActionFineStep, policy.Observe(2, 0.4))
	assert.Equal(t, StateFineTuning, policy.State())
	// the plateau value still enters the history
	assert.Equal(t, []float32{0.5, 0.4}, policy.History())
	assert.Equal(t, ActionContinue, policy.Observe(3, 0.6))
	// a plateau at or past the fine step epoch stops
	assert.Equal(t, ActionStop, policy.Observe(5, 0.3))
	assert.Equal(t, StateStopped, policy.State())
}

func TestStoppingPolicyScheduledFineStep(t *testing.T) {
	policy := NewStoppingPolicy(nil, &FineStepConfig{FromEpoch: 3, Factor: 0.5})
	assert.False(t, policy.FineStepDue(1))
	assert.False(t, policy.FineStepDue(2))
	// fires exactly once at its epoch, whatever the history
	assert.True(t, policy.FineStepDue(3))
	assert.Equal(t, StateFineTuning, policy.State())
	assert.False(t, policy.FineStepDue(4))
}
