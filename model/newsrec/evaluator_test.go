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
	"testing"

	"github.com/Bras-P/recommenders/dataset"
	"github.com/Bras-P/recommenders/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestGroupByKey(t *testing.T) {
	labels := []float32{1, 0, 0, 1, 0}
	preds := []float32{0.9, 0.1, 0.2, 0.8, 0.3}
	keys := []int32{7, 3, 7, 3, 7}
	groups, groupLabels, groupPreds, err := GroupByKey(labels, preds, keys)
	assert.NoError(t, err)
	// ascending distinct keys
	assert.Equal(t, []int32{3, 7}, groups)
	// within a group the order of appearance is kept
	assert.Equal(t, [][]float32{{0, 1}, {1, 0, 0}}, groupLabels)
	assert.Equal(t, [][]float32{{0.1, 0.8}, {0.9, 0.2, 0.3}}, groupPreds)
	// group sizes sum to the input length
	total := 0
	for _, group := range groupLabels {
		total += len(group)
	}
	assert.Equal(t, len(labels), total)
}

func TestGroupByKeyEmpty(t *testing.T) {
	groups, groupLabels, groupPreds, err := GroupByKey(nil, nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, groups)
	assert.Empty(t, groupLabels)
	assert.Empty(t, groupPreds)
}

func TestGroupByKeyMisaligned(t *testing.T) {
	_, _, _, err := GroupByKey([]float32{1}, []float32{0.5}, nil)
	assert.True(t, errors.IsNotValid(err))
}

// stubVectorScorer serves fixed news vectors by article index and user
// vectors in impression order.
type stubVectorScorer struct {
	news      map[int32][]float32
	userQueue [][]float32
}

func (s *stubVectorScorer) InputLabel(batch *model.Batch) (model.Input, [][]float32, error) {
	return model.Input{Ints: batch.Ints}, batch.Labels, nil
}

func (s *stubVectorScorer) TrainStep(input model.Input, labels [][]float32) (float32, error) {
	return 0, nil
}

func (s *stubVectorScorer) Predict(input model.Input) ([][]float32, error) {
	return nil, errors.NotSupportedf("full prediction")
}

func (s *stubVectorScorer) SetLearningRate(lr float32) {}

func (s *stubVectorScorer) NewsInput(batch *model.Batch) (model.Input, error) {
	return model.Input{Ints: batch.Ints}, nil
}

func (s *stubVectorScorer) UserInput(batch *model.Batch) (model.Input, error) {
	return model.Input{Ints: batch.Ints}, nil
}

func (s *stubVectorScorer) PredictNews(input model.Input) ([][]float32, error) {
	rows := input.Ints[model.ColumnNewsID]
	vectors := make([][]float32, len(rows))
	for i, row := range rows {
		vectors[i] = s.news[row[0]]
	}
	return vectors, nil
}

func (s *stubVectorScorer) PredictUser(input model.Input) ([][]float32, error) {
	rows := input.Ints[model.ColumnClickedNews]
	vectors := s.userQueue[:len(rows)]
	s.userQueue = s.userQueue[len(rows):]
	return vectors, nil
}

func TestFastEval(t *testing.T) {
	source := dataset.NewSource(10)
	source.RegisterNews("news", []int32{10, 11})
	source.RegisterBehaviors("behaviors", &dataset.Behaviors{
		Impressions: []model.Impression{
			{Index: 0, UserIndex: 0, NewsIndex: []int32{10, 11}, Labels: []float32{1, 0}},
		},
		History: map[int32][]int32{0: {10}},
	})
	scorer := &stubVectorScorer{
		news: map[int32][]float32{
			10: {1, 0},
			11: {0, 1},
		},
		userQueue: [][]float32{{2, 3}},
	}
	config, err := NewConfig(model.Params{
		model.SupportQuickScoring: true,
		model.Metrics:             []string{"group_auc"},
	})
	assert.NoError(t, err)
	evaluator, err := NewEvaluator(scorer, source, config)
	assert.NoError(t, err)
	keys, labels, preds, err := evaluator.fastEval(context.Background(), "news", "behaviors")
	assert.NoError(t, err)
	assert.Equal(t, []int32{0}, keys)
	assert.Equal(t, [][]float32{{1, 0}}, labels)
	// candidate scores are dot products of the cached vectors
	assert.Equal(t, [][]float32{{2, 3}}, preds)
}

func TestFastEvalMissingVector(t *testing.T) {
	source := dataset.NewSource(10)
	source.RegisterNews("news", []int32{10})
	source.RegisterBehaviors("behaviors", &dataset.Behaviors{
		Impressions: []model.Impression{
			{Index: 0, UserIndex: 0, NewsIndex: []int32{10, 11}, Labels: []float32{1, 0}},
		},
		History: map[int32][]int32{0: {10}},
	})
	scorer := &stubVectorScorer{
		news:      map[int32][]float32{10: {1, 0}, 11: {0, 1}},
		userQueue: [][]float32{{2, 3}},
	}
	config, err := NewConfig(model.Params{model.SupportQuickScoring: true})
	assert.NoError(t, err)
	evaluator, err := NewEvaluator(scorer, source, config)
	assert.NoError(t, err)
	// candidate 11 was never cached
	_, _, _, err = evaluator.fastEval(context.Background(), "news", "behaviors")
	assert.True(t, errors.IsNotFound(err))
}

func TestQuickScoringWithoutTowers(t *testing.T) {
	config, err := NewConfig(model.Params{model.SupportQuickScoring: true})
	assert.NoError(t, err)
	_, err = NewEvaluator(&flatScorer{}, dataset.NewSource(10), config)
	assert.True(t, errors.IsNotValid(err))
}

func TestFastSlowEquivalence(t *testing.T) {
	source := dataset.NewSource(3)
	source.RegisterNews("news", []int32{0, 1, 2, 3, 4, 5})
	source.RegisterBehaviors("behaviors", &dataset.Behaviors{
		Impressions: []model.Impression{
			{Index: 0, UserIndex: 0, NewsIndex: []int32{1, 2, 3}, Labels: []float32{1, 0, 0}},
			{Index: 1, UserIndex: 1, NewsIndex: []int32{4, 5}, Labels: []float32{0, 1}},
			{Index: 2, UserIndex: 2, NewsIndex: []int32{0, 3}, Labels: []float32{1, 0}},
		},
		History: map[int32][]int32{
			0: {0, 5},
			1: {2},
			2: {1, 4, 5},
		},
	})
	scorer, err := NewTwoTower(6, model.Params{
		model.NFactors:            8,
		model.RandomState:         int64(42),
		model.SupportQuickScoring: true,
	})
	assert.NoError(t, err)
	evaluator, err := NewEvaluator(scorer, source, scorer.Config())
	assert.NoError(t, err)

	slowKeys, slowLabels, slowPreds, err := evaluator.slowEval(context.Background(), "news", "behaviors")
	assert.NoError(t, err)
	fastKeys, fastLabels, fastPreds, err := evaluator.fastEval(context.Background(), "news", "behaviors")
	assert.NoError(t, err)

	assert.Equal(t, slowKeys, fastKeys)
	assert.Equal(t, slowLabels, fastLabels)
	assert.Equal(t, len(slowPreds), len(fastPreds))
	for group := range slowPreds {
		assert.Equal(t, len(slowPreds[group]), len(fastPreds[group]))
		for i := range slowPreds[group] {
			assert.InDelta(t, slowPreds[group][i], fastPreds[group][i], 1e-5)
		}
	}
}
