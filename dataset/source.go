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

package dataset

import (
	"io"

	"github.com/Bras-P/recommenders/base"
	"github.com/Bras-P/recommenders/model"
	"github.com/juju/errors"
	"modernc.org/mathutil"
)

// Behaviors is one registered impression log: the labeled impressions and
// the clicked news history of the user behind each impression.
type Behaviors struct {
	Impressions []model.Impression
	History     map[int32][]int32
}

// Source serves batches from splits registered in memory under opaque path
// keys. Training batches carry one positive with sampled negatives per row,
// evaluation batches carry one candidate per row.
type Source struct {
	batchSize int
	npratio   int
	rng       base.RandomGenerator
	news      map[string][]int32
	behaviors map[string]*Behaviors
}

func NewSource(batchSize int) *Source {
	return &Source{
		batchSize: batchSize,
		rng:       base.NewRandomGenerator(0),
		news:      make(map[string][]int32),
		behaviors: make(map[string]*Behaviors),
	}
}

// SetNegativeSampleRatio switches LoadTrain into sampling mode: each
// positive candidate becomes a row with npratio sampled negatives.
func (s *Source) SetNegativeSampleRatio(npratio int) *Source {
	s.npratio = npratio
	return s
}

// SetRandomState seeds the negative sampler.
func (s *Source) SetRandomState(seed int64) *Source {
	s.rng = base.NewRandomGenerator(seed)
	return s
}

// RegisterNews registers the article indices of a news file.
func (s *Source) RegisterNews(path string, news []int32) {
	s.news[path] = news
}

// RegisterBehaviors registers the impression log of a behaviors file.
func (s *Source) RegisterBehaviors(path string, behaviors *Behaviors) {
	s.behaviors[path] = behaviors
}

// LoadTrain produces training batches. With a negative sample ratio every
// positive yields a row of 1+npratio candidates with one-hot labels,
// otherwise the candidate rows are served as they are logged.
func (s *Source) LoadTrain(newsPath, behaviorsPath string) (model.BatchIterator, error) {
	if _, ok := s.news[newsPath]; !ok {
		return nil, errors.NotFoundf("news file %q", newsPath)
	}
	behaviors, ok := s.behaviors[behaviorsPath]
	if !ok {
		return nil, errors.NotFoundf("behaviors file %q", behaviorsPath)
	}
	var rows []row
	if s.npratio > 0 {
		rows = s.trainRows(behaviors)
	} else {
		rows = s.evalRows(behaviors)
	}
	return &batchIterator{rows: rows, batchSize: s.batchSize}, nil
}

// LoadData produces one evaluation row per labeled candidate.
func (s *Source) LoadData(newsPath, behaviorsPath string) (model.BatchIterator, error) {
	if _, ok := s.news[newsPath]; !ok {
		return nil, errors.NotFoundf("news file %q", newsPath)
	}
	behaviors, ok := s.behaviors[behaviorsPath]
	if !ok {
		return nil, errors.NotFoundf("behaviors file %q", behaviorsPath)
	}
	return &batchIterator{rows: s.evalRows(behaviors), batchSize: s.batchSize}, nil
}

// LoadUser produces one row per impression holding the clicked history,
// indexed by impression.
func (s *Source) LoadUser(newsPath, behaviorsPath string) (model.BatchIterator, error) {
	if _, ok := s.news[newsPath]; !ok {
		return nil, errors.NotFoundf("news file %q", newsPath)
	}
	behaviors, ok := s.behaviors[behaviorsPath]
	if !ok {
		return nil, errors.NotFoundf("behaviors file %q", behaviorsPath)
	}
	rows := make([]row, 0, len(behaviors.Impressions))
	for _, impression := range behaviors.Impressions {
		rows = append(rows, row{
			index: impression.Index,
			ints: map[string][]int32{
				model.ColumnClickedNews: behaviors.History[impression.UserIndex],
			},
		})
	}
	return &batchIterator{rows: rows, batchSize: s.batchSize}, nil
}

// LoadNews produces one row per article, indexed by article.
func (s *Source) LoadNews(newsPath string) (model.BatchIterator, error) {
	news, ok := s.news[newsPath]
	if !ok {
		return nil, errors.NotFoundf("news file %q", newsPath)
	}
	rows := make([]row, 0, len(news))
	for _, index := range news {
		rows = append(rows, row{
			index: index,
			ints: map[string][]int32{
				model.ColumnNewsID: {index},
			},
		})
	}
	return &batchIterator{rows: rows, batchSize: s.batchSize}, nil
}

// LoadImpressions streams the registered impressions in order.
func (s *Source) LoadImpressions(behaviorsPath string) (model.ImpressionIterator, error) {
	behaviors, ok := s.behaviors[behaviorsPath]
	if !ok {
		return nil, errors.NotFoundf("behaviors file %q", behaviorsPath)
	}
	return &impressionIterator{impressions: behaviors.Impressions}, nil
}

func (s *Source) trainRows(behaviors *Behaviors) []row {
	var rows []row
	for _, impression := range behaviors.Impressions {
		var negatives []int32
		for i, label := range impression.Labels {
			if label == 0 {
				negatives = append(negatives, impression.NewsIndex[i])
			}
		}
		if len(negatives) == 0 {
			continue
		}
		history := behaviors.History[impression.UserIndex]
		for i, label := range impression.Labels {
			if label == 0 {
				continue
			}
			candidates := make([]int32, 0, 1+s.npratio)
			candidates = append(candidates, impression.NewsIndex[i])
			for len(candidates) < 1+s.npratio {
				candidates = append(candidates, negatives[s.rng.Intn(len(negatives))])
			}
			labels := make([]float32, 1+s.npratio)
			labels[0] = 1
			rows = append(rows, row{
				index: impression.Index,
				ints: map[string][]int32{
					model.ColumnClickedNews:   history,
					model.ColumnCandidateNews: candidates,
				},
				labels: labels,
			})
		}
	}
	return rows
}

func (s *Source) evalRows(behaviors *Behaviors) []row {
	var rows []row
	for _, impression := range behaviors.Impressions {
		history := behaviors.History[impression.UserIndex]
		for i, newsIndex := range impression.NewsIndex {
			rows = append(rows, row{
				index: impression.Index,
				ints: map[string][]int32{
					model.ColumnClickedNews:   history,
					model.ColumnCandidateNews: {newsIndex},
				},
				labels: []float32{impression.Labels[i]},
			})
		}
	}
	return rows
}

type row struct {
	index  int32
	ints   map[string][]int32
	labels []float32
}

// batchIterator slices precomputed rows into fixed size batches. The last
// batch may be short.
type batchIterator struct {
	rows      []row
	batchSize int
	position  int
}

func (it *batchIterator) Next() (*model.Batch, error) {
	if it.position >= len(it.rows) {
		return nil, io.EOF
	}
	end := mathutil.Min(it.position+it.batchSize, len(it.rows))
	rows := it.rows[it.position:end]
	it.position = end
	batch := &model.Batch{
		Index: make([]int32, 0, len(rows)),
		Ints:  make(map[string][][]int32),
	}
	for _, r := range rows {
		batch.Index = append(batch.Index, r.index)
		for column, values := range r.ints {
			batch.Ints[column] = append(batch.Ints[column], values)
		}
		if r.labels != nil {
			batch.Labels = append(batch.Labels, r.labels)
		}
	}
	return batch, nil
}

type impressionIterator struct {
	impressions []model.Impression
	position    int
}

func (it *impressionIterator) Next() (*model.Impression, error) {
	if it.position >= len(it.impressions) {
		return nil, io.EOF
	}
	impression := it.impressions[it.position]
	it.position++
	return &impression, nil
}
