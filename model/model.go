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
	"io"
)

// Conventional feature column names shared by data sources and scorers.
const (
	ColumnClickedNews   = "clicked_news"   // per-row history of clicked news indices
	ColumnCandidateNews = "candidate_news" // per-row candidate news indices
	ColumnNewsID        = "news_id"        // per-row news index in news-only batches
)

// Batch is one chunk of training or evaluation data. Feature columns are
// named matrices; Index identifies the originating impression or entity of
// each row. Batches are produced fresh by iterators and consumed
// immediately, never retained.
type Batch struct {
	Index  []int32
	Ints   map[string][][]int32
	Floats map[string][][]float32
	Labels [][]float32
}

// Size returns the number of rows in the batch.
func (b *Batch) Size() int {
	return len(b.Index)
}

// Input is the set of named feature matrices a scorer consumes.
type Input struct {
	Ints   map[string][][]int32
	Floats map[string][][]float32
}

// Impression is one ranking event from the behaviors stream: a user, a
// candidate news list and the observed labels.
type Impression struct {
	Index     int32
	NewsIndex []int32
	UserIndex int32
	Labels    []float32
}

// Scorer is a trainable click scoring model.
type Scorer interface {
	// InputLabel extracts the model input and labels from a batch.
	InputLabel(batch *Batch) (Input, [][]float32, error)
	// TrainStep runs one optimization step on a batch and returns its loss.
	// Weights are updated in place.
	TrainStep(input Input, labels [][]float32) (float32, error)
	// Predict scores the candidates of every row of a batch.
	Predict(input Input) ([][]float32, error)
	// SetLearningRate changes the learning rate of the underlying optimizer.
	SetLearningRate(lr float32)
}

// VectorScorer is a scorer decomposable into a news encoder and a user
// encoder whose dot product reproduces the joint score. The capability is
// declared by interface satisfaction and checked once at construction, not
// probed per call.
type VectorScorer interface {
	Scorer
	// NewsInput extracts news encoder input from a news-only batch.
	NewsInput(batch *Batch) (Input, error)
	// UserInput extracts user encoder input from a user-only batch.
	UserInput(batch *Batch) (Input, error)
	// PredictNews encodes one news vector per row.
	PredictNews(input Input) ([][]float32, error)
	// PredictUser encodes one user vector per row.
	PredictUser(input Input) ([][]float32, error)
}

// BatchIterator produces a lazy, finite sequence of batches. Next returns
// io.EOF after the last batch. Iterators are not re-entrant; restarting a
// pass means requesting a new iterator from the data source.
type BatchIterator interface {
	Next() (*Batch, error)
}

// ImpressionIterator produces a lazy, finite sequence of impressions. Next
// returns io.EOF after the last impression.
type ImpressionIterator interface {
	Next() (*Impression, error)
}

// DataSource creates batch iterators from opaque file paths. The harness
// never interprets the paths.
type DataSource interface {
	// LoadTrain produces training batches: every positive candidate yields
	// one row together with its sampled negatives.
	LoadTrain(newsPath, behaviorsPath string) (BatchIterator, error)
	// LoadData produces one row per labeled candidate, indexed by
	// impression, for slow evaluation.
	LoadData(newsPath, behaviorsPath string) (BatchIterator, error)
	// LoadUser produces user-only batches indexed by impression.
	LoadUser(newsPath, behaviorsPath string) (BatchIterator, error)
	// LoadNews produces news-only batches indexed by news entity.
	LoadNews(newsPath string) (BatchIterator, error)
	// LoadImpressions produces the impression stream for fast evaluation.
	LoadImpressions(behaviorsPath string) (ImpressionIterator, error)
}

// Marshaler is implemented by scorers that support checkpointing.
type Marshaler interface {
	Marshal(w io.Writer) error
}

// Unmarshaler is implemented by scorers that support checkpoint restore.
type Unmarshaler interface {
	Unmarshal(r io.Reader) error
}
