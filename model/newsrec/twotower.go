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
	"io"

	"github.com/Bras-P/recommenders/base"
	"github.com/Bras-P/recommenders/common/encoding"
	"github.com/Bras-P/recommenders/common/floats"
	"github.com/Bras-P/recommenders/common/nn"
	"github.com/Bras-P/recommenders/model"
	"github.com/juju/errors"
)

// TwoTower is an embedding-table news recommender. The news tower is a plain
// embedding lookup and the user tower mean-pools the embeddings of the
// clicked history, so a candidate score is a single dot product and both
// evaluation paths agree by construction.
type TwoTower struct {
	config    *Config
	numNews   int
	nFactors  int
	embedding *nn.Tensor
	optimizer nn.Optimizer
}

// NewTwoTower builds a model over numNews articles. Hyper-parameters are
// resolved eagerly, so a bad loss or optimizer name fails here.
func NewTwoTower(numNews int, params model.Params) (*TwoTower, error) {
	config, err := NewConfig(params)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if numNews <= 0 {
		return nil, errors.NotValidf("news count %d", numNews)
	}
	t := &TwoTower{
		config:   config,
		numNews:  numNews,
		nFactors: params.GetInt(model.NFactors, 32),
	}
	rng := base.NewRandomGenerator(params.GetInt64(model.RandomState, 0))
	stdDev := params.GetFloat32(model.InitStdDev, 0.1)
	t.embedding = nn.NewTensor(rng.NormalVector(numNews*t.nFactors, 0, stdDev), numNews, t.nFactors)
	t.optimizer = config.NewOptimizer([]*nn.Tensor{t.embedding}, config.LearningRate)
	return t, nil
}

func (t *TwoTower) Config() *Config {
	return t.config
}

func (t *TwoTower) SetLearningRate(lr float32) {
	t.optimizer.SetLearningRate(lr)
}

// InputLabel splits a batch into the model input columns and the labels.
func (t *TwoTower) InputLabel(batch *model.Batch) (model.Input, [][]float32, error) {
	input, err := pickColumns(batch, model.ColumnClickedNews, model.ColumnCandidateNews)
	if err != nil {
		return model.Input{}, nil, errors.Trace(err)
	}
	return input, batch.Labels, nil
}

// NewsInput keeps the candidate identity column of a news-only batch.
func (t *TwoTower) NewsInput(batch *model.Batch) (model.Input, error) {
	return pickColumns(batch, model.ColumnNewsID)
}

// UserInput keeps the clicked history column of a user-only batch.
func (t *TwoTower) UserInput(batch *model.Batch) (model.Input, error) {
	return pickColumns(batch, model.ColumnClickedNews)
}

// TrainStep runs one forward and backward pass and returns the mean row loss.
func (t *TwoTower) TrainStep(input model.Input, labels [][]float32) (float32, error) {
	history, candidates, err := t.columns(input)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if len(labels) != len(candidates) {
		return 0, errors.NotValidf("%d label rows against %d candidate rows", len(labels), len(candidates))
	}
	t.optimizer.ZeroGrad()
	var totalLoss float32
	userGrad := make([]float32, t.nFactors)
	for row := range candidates {
		user := t.userVector(history[row])
		scores := make([]float32, len(candidates[row]))
		for i, index := range candidates[row] {
			scores[i] = floats.Dot(t.embedding.Slice(int(index)), user)
		}
		totalLoss += t.config.Loss.Loss(scores, labels[row])
		grad := make([]float32, len(scores))
		t.config.Loss.Grad(scores, labels[row], grad)
		floats.Zero(userGrad)
		for i, index := range candidates[row] {
			floats.MulConstAdd(user, grad[i], t.embedding.GradSlice(int(index)))
			floats.MulConstAdd(t.embedding.Slice(int(index)), grad[i], userGrad)
		}
		if len(history[row]) > 0 {
			scale := 1 / float32(len(history[row]))
			for _, index := range history[row] {
				floats.MulConstAdd(userGrad, scale, t.embedding.GradSlice(int(index)))
			}
		}
	}
	t.optimizer.Step()
	return totalLoss / float32(len(candidates)), nil
}

// Predict scores every candidate of every row with the raw dot product of
// the two towers.
func (t *TwoTower) Predict(input model.Input) ([][]float32, error) {
	history, candidates, err := t.columns(input)
	if err != nil {
		return nil, errors.Trace(err)
	}
	preds := make([][]float32, len(candidates))
	for row := range candidates {
		user := t.userVector(history[row])
		preds[row] = make([]float32, len(candidates[row]))
		for i, index := range candidates[row] {
			preds[row][i] = floats.Dot(t.embedding.Slice(int(index)), user)
		}
	}
	return preds, nil
}

// PredictNews returns the embedding of the single article of each row.
func (t *TwoTower) PredictNews(input model.Input) ([][]float32, error) {
	rows, ok := input.Ints[model.ColumnNewsID]
	if !ok {
		return nil, errors.NotFoundf("column %q", model.ColumnNewsID)
	}
	vectors := make([][]float32, len(rows))
	for row, indices := range rows {
		if len(indices) != 1 {
			return nil, errors.NotValidf("%d article ids in one row", len(indices))
		}
		vectors[row] = t.embedding.Slice(int(indices[0]))
	}
	return vectors, nil
}

// PredictUser returns the mean-pooled history embedding of each row.
func (t *TwoTower) PredictUser(input model.Input) ([][]float32, error) {
	rows, ok := input.Ints[model.ColumnClickedNews]
	if !ok {
		return nil, errors.NotFoundf("column %q", model.ColumnClickedNews)
	}
	vectors := make([][]float32, len(rows))
	for row, history := range rows {
		vectors[row] = t.userVector(history)
	}
	return vectors, nil
}

// Marshal writes the model shape and weights.
func (t *TwoTower) Marshal(w io.Writer) error {
	if err := encoding.WriteGob(w, t.numNews); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, t.nFactors); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteGob(w, t.embedding.Data()))
}

// Unmarshal restores the model shape and weights and rebuilds the optimizer
// state from scratch.
func (t *TwoTower) Unmarshal(r io.Reader) error {
	if err := encoding.ReadGob(r, &t.numNews); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &t.nFactors); err != nil {
		return errors.Trace(err)
	}
	data := make([]float32, 0, t.numNews*t.nFactors)
	if err := encoding.ReadGob(r, &data); err != nil {
		return errors.Trace(err)
	}
	if len(data) != t.numNews*t.nFactors {
		return errors.NotValidf("%d weights for shape %dx%d", len(data), t.numNews, t.nFactors)
	}
	t.embedding = nn.NewTensor(data, t.numNews, t.nFactors)
	t.optimizer = t.config.NewOptimizer([]*nn.Tensor{t.embedding}, t.config.LearningRate)
	return nil
}

func (t *TwoTower) userVector(history []int32) []float32 {
	user := make([]float32, t.nFactors)
	if len(history) == 0 {
		return user
	}
	for _, index := range history {
		floats.Add(user, t.embedding.Slice(int(index)))
	}
	floats.MulConst(user, 1/float32(len(history)))
	return user
}

func (t *TwoTower) columns(input model.Input) (history, candidates [][]int32, err error) {
	var ok bool
	if history, ok = input.Ints[model.ColumnClickedNews]; !ok {
		return nil, nil, errors.NotFoundf("column %q", model.ColumnClickedNews)
	}
	if candidates, ok = input.Ints[model.ColumnCandidateNews]; !ok {
		return nil, nil, errors.NotFoundf("column %q", model.ColumnCandidateNews)
	}
	if len(history) != len(candidates) {
		return nil, nil, errors.NotValidf("%d history rows against %d candidate rows", len(history), len(candidates))
	}
	return history, candidates, nil
}

func pickColumns(batch *model.Batch, columns ...string) (model.Input, error) {
	input := model.Input{Ints: make(map[string][][]int32, len(columns))}
	for _, column := range columns {
		rows, ok := batch.Ints[column]
		if !ok {
			return model.Input{}, errors.NotFoundf("column %q", column)
		}
		input.Ints[column] = rows
	}
	return input, nil
}
