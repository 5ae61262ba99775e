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
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/Bras-P/recommenders/base/log"
	"github.com/Bras-P/recommenders/base/progress"
	"github.com/Bras-P/recommenders/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// FitFiles names the datasets of one training run. Test files are optional;
// when present the test split is evaluated each epoch alongside validation.
type FitFiles struct {
	TrainNews      string
	TrainBehaviors string
	ValidNews      string
	ValidBehaviors string
	TestNews       string
	TestBehaviors  string
}

// FitConfig carries per-run knobs that are not hyper-parameters.
type FitConfig struct {
	// CheckpointPath, when set, receives the serialized model after every
	// epoch. Write failures are logged and training continues.
	CheckpointPath string
}

// FitResult summarizes a completed training run.
type FitResult struct {
	// Epochs is the number of epochs actually run.
	Epochs int
	// TrainLoss holds the mean training loss of each epoch.
	TrainLoss []float32
	// Scores holds the validation metrics of the last epoch.
	Scores map[string]float64
	// TestScores holds the test metrics of the last epoch, if a test split
	// was given.
	TestScores map[string]float64
	// State reports how the run ended.
	State State
}

// Trainer drives the epoch loop: train pass, validation, optional test
// evaluation, checkpoint and stopping decision.
type Trainer struct {
	scorer    model.Scorer
	source    model.DataSource
	config    *Config
	evaluator *Evaluator
}

func NewTrainer(scorer model.Scorer, source model.DataSource, config *Config) (*Trainer, error) {
	evaluator, err := NewEvaluator(scorer, source, config)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Trainer{
		scorer:    scorer,
		source:    source,
		config:    config,
		evaluator: evaluator,
	}, nil
}

// Fit trains the scorer for the configured number of epochs or until the
// stopping policy terminates the run.
func (t *Trainer) Fit(ctx context.Context, files FitFiles, fitConfig *FitConfig) (*FitResult, error) {
	if fitConfig == nil {
		fitConfig = &FitConfig{}
	}
	var marshaler model.Marshaler
	if fitConfig.CheckpointPath != "" {
		var ok bool
		if marshaler, ok = t.scorer.(model.Marshaler); !ok {
			return nil, errors.NotValidf("checkpointing a scorer without serialization")
		}
	}
	policy := NewStoppingPolicy(t.config.EarlyStopping, t.config.FineStep)
	result := &FitResult{State: StateRunning}
	newCtx, span := progress.Start(ctx, "Trainer.Fit", t.config.Epochs)
	defer span.End()
	for epoch := 1; epoch <= t.config.Epochs; epoch++ {
		if policy.FineStepDue(epoch) {
			t.decayLearningRate(epoch, "scheduled learning rate decay")
		}
		fitStart := time.Now()
		trainLoss, err := t.trainPass(newCtx, epoch, files)
		if err != nil {
			return nil, errors.Trace(err)
		}
		fitTime := time.Since(fitStart)
		evalStart := time.Now()
		scores, err := t.evaluator.Evaluate(newCtx, files.ValidNews, files.ValidBehaviors)
		if err != nil {
			return nil, errors.Trace(err)
		}
		var testScores map[string]float64
		if files.TestBehaviors != "" {
			if testScores, err = t.evaluator.Evaluate(newCtx, files.TestNews, files.TestBehaviors); err != nil {
				return nil, errors.Trace(err)
			}
		}
		evalTime := time.Since(evalStart)
		fields := []zap.Field{
			zap.String("fit_time", fitTime.String()),
			zap.String("eval_time", evalTime.String()),
			zap.Float32("train_loss", trainLoss),
		}
		for _, name := range sortedKeys(scores) {
			fields = append(fields, zap.Float64(name, scores[name]))
		}
		log.Logger().Info(fmt.Sprintf("fit epoch %v/%v", epoch, t.config.Epochs), fields...)
		result.Epochs = epoch
		result.TrainLoss = append(result.TrainLoss, trainLoss)
		result.Scores = scores
		result.TestScores = testScores
		if fitConfig.CheckpointPath != "" {
			t.checkpoint(marshaler, fitConfig.CheckpointPath, epoch)
		}
		if t.config.EarlyStopping != nil {
			value, ok := scores[t.config.EarlyStopping.Metric]
			if !ok {
				return nil, errors.NotValidf("early stopping on unreported metric %q", t.config.EarlyStopping.Metric)
			}
			switch policy.Observe(epoch, float32(value)) {
			case ActionFineStep:
				t.decayLearningRate(epoch, "plateau learning rate decay")
			case ActionStop:
				log.Logger().Info("early stop",
					zap.Int("epoch", epoch),
					zap.Float64(t.config.EarlyStopping.Metric, value))
				result.State = StateStopped
				return result, nil
			}
		}
		span.Add(1)
	}
	result.State = policy.State()
	return result, nil
}

// trainPass runs one epoch over the training split and returns the mean
// batch loss.
func (t *Trainer) trainPass(ctx context.Context, epoch int, files FitFiles) (float32, error) {
	iterator, err := t.source.LoadTrain(files.TrainNews, files.TrainBehaviors)
	if err != nil {
		return 0, errors.Trace(err)
	}
	var totalLoss float32
	var step int
	for {
		batch, err := iterator.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return 0, errors.Trace(err)
		}
		if err = ctx.Err(); err != nil {
			return 0, errors.Trace(err)
		}
		input, labels, err := t.scorer.InputLabel(batch)
		if err != nil {
			return 0, errors.Trace(err)
		}
		loss, err := t.scorer.TrainStep(input, labels)
		if err != nil {
			return 0, errors.Trace(err)
		}
		step++
		totalLoss += loss
		if step%t.config.ShowStep == 0 {
			log.Logger().Info("train step",
				zap.Int("epoch", epoch),
				zap.Int("step", step),
				zap.Float32("loss", loss),
				zap.Float32("avg_loss", totalLoss/float32(step)))
		}
	}
	if step == 0 {
		log.Logger().Warn("empty training split", zap.Int("epoch", epoch))
		return 0, nil
	}
	return totalLoss / float32(step), nil
}

func (t *Trainer) decayLearningRate(epoch int, reason string) {
	lr := t.config.LearningRate * t.config.FineStep.Factor
	t.scorer.SetLearningRate(lr)
	log.Logger().Info(reason,
		zap.Int("epoch", epoch),
		zap.Float32("learning_rate", lr))
}

func (t *Trainer) checkpoint(marshaler model.Marshaler, path string, epoch int) {
	file, err := os.Create(path)
	if err != nil {
		log.Logger().Error("failed to write checkpoint", zap.String("path", path),
			zap.Int("epoch", epoch), zap.Error(err))
		return
	}
	defer file.Close()
	if err = marshaler.Marshal(file); err != nil {
		log.Logger().Error("failed to write checkpoint", zap.String("path", path),
			zap.Int("epoch", epoch), zap.Error(err))
	}
}

func sortedKeys(scores map[string]float64) []string {
	names := lo.Keys(scores)
	sort.Strings(names)
	return names
}
