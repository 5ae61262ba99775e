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
	"reflect"

	"github.com/Bras-P/recommenders/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

/* ParamName */

// ParamName is the type of hyper-parameter names.
type ParamName string

// Predefined hyper-parameter names
const (
	Epochs              ParamName = "Epochs"              // number of epochs
	BatchSize           ParamName = "BatchSize"           // batch size
	ShowStep            ParamName = "ShowStep"            // step interval of progress reports
	Loss                ParamName = "Loss"                // loss kind
	Optimizer           ParamName = "Optimizer"           // optimizer name
	LearningRate        ParamName = "LearningRate"        // learning rate
	Metrics             ParamName = "Metrics"             // evaluation metric names
	SupportQuickScoring ParamName = "SupportQuickScoring" // enable vector-based fast evaluation
	NFactors            ParamName = "NFactors"            // embedding dimension
	NegativeSampleRatio ParamName = "NegativeSampleRatio" // negatives per positive in training
	InitStdDev          ParamName = "InitStdDev"          // standard deviation of initial embeddings
	RandomState         ParamName = "RandomState"         // random state (seed)

	// early stopping
	UseEarlyStopping            ParamName = "UseEarlyStopping"
	EarlyStoppingMetric         ParamName = "EarlyStoppingMetric"
	EarlyStoppingPatience       ParamName = "EarlyStoppingPatience"
	EarlyStoppingDelta          ParamName = "EarlyStoppingDelta"
	EarlyStoppingStartFromEpoch ParamName = "EarlyStoppingStartFromEpoch"

	// learning rate fine stepping
	UseFineStep       ParamName = "UseFineStep"
	FineStepFromEpoch ParamName = "FineStepFromEpoch"
	FineStepFactor    ParamName = "FineStepFactor"
)

// Params stores hyper-parameters for a model. It is a map between strings
// (names) and interface{}s (values). For example, hyper-parameters for the
// two tower model are given by:
//
//	model.Params{
//		model.LearningRate: 0.001,
//		model.Epochs:       10,
//		model.NFactors:     32,
//	}
type Params map[ParamName]interface{}

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params)
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

// GetInt gets a integer parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)), zap.String("expect", "int"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetInt64 gets a int64 parameter by name. Returns _default if not exists or type doesn't match. The
// type will be converted if given int.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)), zap.String("expect", "int64"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetBool gets a bool parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetBool(name ParamName, _default bool) bool {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case bool:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)), zap.String("expect", "bool"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetFloat32 gets a float parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetFloat32(name ParamName, _default float32) float32 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float32:
			return val
		case float64:
			return float32(val)
		case int:
			return float32(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)), zap.String("expect", "float32"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetString gets a string parameter. Returns _default if not exists or type doesn't match.
func (parameters Params) GetString(name ParamName, _default string) string {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case string:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)), zap.String("expect", "string"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetStringSlice gets a string slice parameter. Returns _default if not exists or type doesn't match.
func (parameters Params) GetStringSlice(name ParamName, _default []string) []string {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case []string:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)), zap.String("expect", "[]string"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// RequireInt gets an integer parameter demanded by an enabled feature. A
// missing or mistyped value is a configuration error.
func (parameters Params) RequireInt(name ParamName) (int, error) {
	val, exist := parameters[name]
	if !exist {
		return 0, errors.NotFoundf("hyper-parameter %v", name)
	}
	v, ok := val.(int)
	if !ok {
		return 0, errors.NotValidf("hyper-parameter %v: expect int, got %v", name, reflect.TypeOf(val))
	}
	return v, nil
}

// RequireFloat32 gets a float parameter demanded by an enabled feature. A
// missing or mistyped value is a configuration error.
func (parameters Params) RequireFloat32(name ParamName) (float32, error) {
	val, exist := parameters[name]
	if !exist {
		return 0, errors.NotFoundf("hyper-parameter %v", name)
	}
	switch v := val.(type) {
	case float32:
		return v, nil
	case float64:
		return float32(v), nil
	case int:
		return float32(v), nil
	default:
		return 0, errors.NotValidf("hyper-parameter %v: expect float32, got %v", name, reflect.TypeOf(val))
	}
}

// RequireString gets a string parameter demanded by an enabled feature. A
// missing or mistyped value is a configuration error.
func (parameters Params) RequireString(name ParamName) (string, error) {
	val, exist := parameters[name]
	if !exist {
		return "", errors.NotFoundf("hyper-parameter %v", name)
	}
	v, ok := val.(string)
	if !ok {
		return "", errors.NotValidf("hyper-parameter %v: expect string, got %v", name, reflect.TypeOf(val))
	}
	return v, nil
}

// Overwrite overwrites parameters with given parameters.
func (parameters Params) Overwrite(params Params) Params {
	merged := parameters.Copy()
	for k, v := range params {
		merged[k] = v
	}
	return merged
}
