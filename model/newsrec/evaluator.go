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
	"io"
	"sort"

	"github.com/Bras-P/recommenders/common/floats"
	"github.com/Bras-P/recommenders/model"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
)

// Evaluator scores a model over a labeled behaviors file and reduces the
// predictions to ranking metrics. When the configuration declares quick
// scoring the evaluator uses the news and user towers to score each
// candidate by a dot product instead of running the full network per row.
type Evaluator struct {
	scorer model.Scorer
	vector model.VectorScorer
	source model.DataSource
	config *Config
}

// NewEvaluator validates the quick scoring capability once, at construction.
// Declaring quick scoring for a scorer that exposes no vector towers is a
// configuration error.
func NewEvaluator(scorer model.Scorer, source model.DataSource, config *Config) (*Evaluator, error) {
	evaluator := &Evaluator{
		scorer: scorer,
		source: source,
		config: config,
	}
	if config.SupportQuickScoring {
		vector, ok := scorer.(model.VectorScorer)
		if !ok {
			return nil, errors.NotValidf("quick scoring with a scorer without vector towers")
		}
		evaluator.vector = vector
	}
	return evaluator, nil
}

// Evaluate scores the behaviors file and returns the configured metrics
// keyed by name.
func (e *Evaluator) Evaluate(ctx context.Context, newsPath, behaviorsPath string) (map[string]float64, error) {
	var labels, preds [][]float32
	var err error
	if e.vector != nil {
		_, labels, preds, err = e.fastEval(ctx, newsPath, behaviorsPath)
	} else {
		_, labels, preds, err = e.slowEval(ctx, newsPath, behaviorsPath)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return CalcMetrics(labels, preds, e.config.Metrics)
}

// slowEval runs the full network over every candidate row, then regroups the
// flat predictions by impression.
func (e *Evaluator) slowEval(ctx context.Context, newsPath, behaviorsPath string) ([]int32, [][]float32, [][]float32, error) {
	iterator, err := e.source.LoadData(newsPath, behaviorsPath)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	var flatLabels, flatPreds []float32
	var flatKeys []int32
	for {
		batch, err := iterator.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, nil, errors.Trace(err)
		}
		if err = ctx.Err(); err != nil {
			return nil, nil, nil, errors.Trace(err)
		}
		input, labels, err := e.scorer.InputLabel(batch)
		if err != nil {
			return nil, nil, nil, errors.Trace(err)
		}
		preds, err := e.scorer.Predict(input)
		if err != nil {
			return nil, nil, nil, errors.Trace(err)
		}
		for row := range preds {
			for column := range preds[row] {
				flatPreds = append(flatPreds, preds[row][column])
				flatLabels = append(flatLabels, labels[row][column])
				flatKeys = append(flatKeys, batch.Index[row])
			}
		}
	}
	return GroupByKey(flatLabels, flatPreds, flatKeys)
}

// fastEval caches one vector per news article and one per impression user,
// then scores every candidate by a dot product.
func (e *Evaluator) fastEval(ctx context.Context, newsPath, behaviorsPath string) ([]int32, [][]float32, [][]float32, error) {
	newsVectors, err := e.vectorCache(ctx, func() (model.BatchIterator, error) {
		return e.source.LoadNews(newsPath)
	}, e.vector.NewsInput, e.vector.PredictNews)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	userVectors, err := e.vectorCache(ctx, func() (model.BatchIterator, error) {
		return e.source.LoadUser(newsPath, behaviorsPath)
	}, e.vector.UserInput, e.vector.PredictUser)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	impressions, err := e.source.LoadImpressions(behaviorsPath)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	var keys []int32
	var labels, preds [][]float32
	for {
		impression, err := impressions.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, nil, errors.Trace(err)
		}
		userVector, ok := userVectors[impression.Index]
		if !ok {
			return nil, nil, nil, errors.NotFoundf("user vector for impression %d", impression.Index)
		}
		scores := make([]float32, len(impression.NewsIndex))
		for i, newsIndex := range impression.NewsIndex {
			newsVector, ok := newsVectors[newsIndex]
			if !ok {
				return nil, nil, nil, errors.NotFoundf("news vector %d", newsIndex)
			}
			scores[i] = floats.Dot(newsVector, userVector)
		}
		keys = append(keys, impression.Index)
		labels = append(labels, impression.Labels)
		preds = append(preds, scores)
	}
	return keys, labels, preds, nil
}

// vectorCache drains an iterator through one tower and indexes the resulting
// vectors by batch index. A key seen twice keeps its last vector.
func (e *Evaluator) vectorCache(ctx context.Context, load func() (model.BatchIterator, error),
	input func(*model.Batch) (model.Input, error), predict func(model.Input) ([][]float32, error)) (map[int32][]float32, error) {
	iterator, err := load()
	if err != nil {
		return nil, errors.Trace(err)
	}
	vectors := make(map[int32][]float32)
	for {
		batch, err := iterator.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if err = ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		in, err := input(batch)
		if err != nil {
			return nil, errors.Trace(err)
		}
		rows, err := predict(in)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if len(rows) != batch.Size() {
			return nil, errors.NotValidf("%d vectors for a batch of %d rows", len(rows), batch.Size())
		}
		for row, vector := range rows {
			vectors[batch.Index[row]] = vector
		}
	}
	return vectors, nil
}

// GroupByKey partitions parallel label and prediction slices by their group
// key. Groups are returned in ascending key order. Within a group the
// original order of appearance is kept.
func GroupByKey(labels, preds []float32, keys []int32) ([]int32, [][]float32, [][]float32, error) {
	if len(labels) != len(preds) || len(labels) != len(keys) {
		return nil, nil, nil, errors.NotValidf("%d labels, %d predictions and %d keys", len(labels), len(preds), len(keys))
	}
	distinct := mapset.NewThreadUnsafeSet(keys...).ToSlice()
	sort.Slice(distinct, func(i, j int) bool { return distinct[i] < distinct[j] })
	position := make(map[int32]int, len(distinct))
	for i, key := range distinct {
		position[key] = i
	}
	groupLabels := make([][]float32, len(distinct))
	groupPreds := make([][]float32, len(distinct))
	for i, key := range keys {
		at := position[key]
		groupLabels[at] = append(groupLabels[at], labels[i])
		groupPreds[at] = append(groupPreds[at], preds[i])
	}
	return distinct, groupLabels, groupPreds, nil
}
