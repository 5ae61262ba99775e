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

package model

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestParams(t *testing.T) {
	p := Params{
		Epochs:       10,
		LearningRate: 0.5,
		Loss:         "log_loss",
		Metrics:      []string{"auc"},
		UseFineStep:  true,
		RandomState:  int64(42),
	}
	assert.Equal(t, 10, p.GetInt(Epochs, 0))
	assert.Equal(t, 100, p.GetInt(BatchSize, 100))
	assert.Equal(t, int64(42), p.GetInt64(RandomState, 0))
	assert.Equal(t, float32(0.5), p.GetFloat32(LearningRate, 0))
	assert.Equal(t, "log_loss", p.GetString(Loss, ""))
	assert.Equal(t, []string{"auc"}, p.GetStringSlice(Metrics, nil))
	assert.True(t, p.GetBool(UseFineStep, false))
	assert.False(t, p.GetBool(UseEarlyStopping, false))
}

func TestParamsTypeMismatch(t *testing.T) {
	p := Params{Epochs: "ten"}
	// mismatched values fall back to the default
	assert.Equal(t, 3, p.GetInt(Epochs, 3))
}

func TestParamsRequire(t *testing.T) {
	p := Params{
		EarlyStoppingPatience: 5,
		EarlyStoppingDelta:    0.01,
		EarlyStoppingMetric:   "group_auc",
	}
	patience, err := p.RequireInt(EarlyStoppingPatience)
	assert.NoError(t, err)
	assert.Equal(t, 5, patience)
	delta, err := p.RequireFloat32(EarlyStoppingDelta)
	assert.NoError(t, err)
	assert.Equal(t, float32(0.01), delta)
	metric, err := p.RequireString(EarlyStoppingMetric)
	assert.NoError(t, err)
	assert.Equal(t, "group_auc", metric)

	_, err = p.RequireInt(EarlyStoppingStartFromEpoch)
	assert.True(t, errors.IsNotFound(err))
	_, err = p.RequireInt(EarlyStoppingMetric)
	assert.True(t, errors.IsNotValid(err))
}

func TestParamsCopyOverwrite(t *testing.T) {
	base := Params{Epochs: 1, BatchSize: 32}
	override := base.Copy().Overwrite(Params{Epochs: 2})
	assert.Equal(t, 2, override.GetInt(Epochs, 0))
	assert.Equal(t, 32, override.GetInt(BatchSize, 0))
	// the source is untouched
	assert.Equal(t, 1, base.GetInt(Epochs, 0))
}
