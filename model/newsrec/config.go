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
	"strings"

	"github.com/Bras-P/recommenders/common/nn"
	"github.com/Bras-P/recommenders/model"
	"github.com/juju/errors"
)

// Supported loss kinds.
const (
	CrossEntropyLoss = "cross_entropy_loss"
	LogLoss          = "log_loss"
)

// Supported optimizer names.
const (
	SGD  = "sgd"
	Adam = "adam"
)

// OptimizerCreator creates an optimizer over model parameters.
type OptimizerCreator func(params []*nn.Tensor, lr float32) nn.Optimizer

// Optimizer names are resolved through an enumerated table, validated once
// at configuration time.
var optimizerTable = map[string]OptimizerCreator{
	SGD:  nn.NewSGD,
	Adam: nn.NewAdam,
}

var lossTable = map[string]Loss{
	CrossEntropyLoss: crossEntropyLoss{},
	LogLoss:          logLoss{},
}

// EarlyStoppingConfig controls plateau detection over a monitored metric.
type EarlyStoppingConfig struct {
	Metric         string
	Patience       int
	Delta          float32
	StartFromEpoch int
}

// FineStepConfig controls the learning rate decay regime of the last epochs.
type FineStepConfig struct {
	FromEpoch int
	Factor    float32
}

// Config is the resolved and validated hyper-parameter set consumed by the
// trainer and the evaluator.
type Config struct {
	Epochs              int
	ShowStep            int
	LearningRate        float32
	LossName            string
	Loss                Loss
	OptimizerName       string
	NewOptimizer        OptimizerCreator
	Metrics             []string
	SupportQuickScoring bool
	EarlyStopping       *EarlyStoppingConfig
	FineStep            *FineStepConfig
}

// NewConfig resolves hyper-parameters eagerly. Unknown loss, optimizer or
// metric names and fields missing under an enabled optional feature are
// configuration errors.
func NewConfig(params model.Params) (*Config, error) {
	config := &Config{
		Epochs:              params.GetInt(model.Epochs, 10),
		ShowStep:            params.GetInt(model.ShowStep, 10),
		LearningRate:        params.GetFloat32(model.LearningRate, 0.001),
		LossName:            params.GetString(model.Loss, CrossEntropyLoss),
		OptimizerName:       strings.ToLower(params.GetString(model.Optimizer, Adam)),
		Metrics:             params.GetStringSlice(model.Metrics, []string{"auc", "mean_mrr", "ndcg@5;10"}),
		SupportQuickScoring: params.GetBool(model.SupportQuickScoring, false),
	}
	if config.Epochs <= 0 {
		return nil, errors.NotValidf("epochs %d", config.Epochs)
	}
	if config.ShowStep <= 0 {
		return nil, errors.NotValidf("show step %d", config.ShowStep)
	}
	var ok bool
	if config.Loss, ok = lossTable[config.LossName]; !ok {
		return nil, errors.NotValidf("loss %q", config.LossName)
	}
	if config.NewOptimizer, ok = optimizerTable[config.OptimizerName]; !ok {
		return nil, errors.NotValidf("optimizer %q", config.OptimizerName)
	}
	if _, err := resolveMetrics(config.Metrics); err != nil {
		return nil, errors.Trace(err)
	}
	if params.GetBool(model.UseEarlyStopping, false) {
		earlyStopping := &EarlyStoppingConfig{}
		var err error
		if earlyStopping.Metric, err = params.RequireString(model.EarlyStoppingMetric); err != nil {
			return nil, errors.Trace(err)
		}
		if earlyStopping.Patience, err = params.RequireInt(model.EarlyStoppingPatience); err != nil {
			return nil, errors.Trace(err)
		}
		if earlyStopping.Delta, err = params.RequireFloat32(model.EarlyStoppingDelta); err != nil {
			return nil, errors.Trace(err)
		}
		if earlyStopping.StartFromEpoch, err = params.RequireInt(model.EarlyStoppingStartFromEpoch); err != nil {
			return nil, errors.Trace(err)
		}
		if earlyStopping.Patience <= 0 {
			return nil, errors.NotValidf("early stopping patience %d", earlyStopping.Patience)
		}
		config.EarlyStopping = earlyStopping
	}
	if params.GetBool(model.UseFineStep, false) {
		fineStep := &FineStepConfig{}
		var err error
		if fineStep.FromEpoch, err = params.RequireInt(model.FineStepFromEpoch); err != nil {
			return nil, errors.Trace(err)
		}
		if fineStep.Factor, err = params.RequireFloat32(model.FineStepFactor); err != nil {
			return nil, errors.Trace(err)
		}
		config.FineStep = fineStep
	}
	return config, nil
}
