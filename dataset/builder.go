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
	"github.com/Bras-P/recommenders/model"
	"github.com/juju/errors"
)

// RawBehavior is one impression log record with string identifiers, as
// parsed from a behaviors file.
type RawBehavior struct {
	User       string
	History    []string
	Candidates []string
	Labels     []float32
}

// Builder indexes string news and user identifiers into dense indices and
// registers the resulting splits on a Source. All splits built by one
// builder share one identifier space.
type Builder struct {
	source *Source
	news   *FreqDict
	users  *FreqDict
}

func NewBuilder(source *Source) *Builder {
	return &Builder{
		source: source,
		news:   NewFreqDict(),
		users:  NewFreqDict(),
	}
}

// NewsCount returns the number of distinct news identifiers seen so far.
// Models size their embedding tables from it after all splits are added.
func (b *Builder) NewsCount() int32 {
	return b.news.Count()
}

// AddNews indexes the article identifiers of a news file and registers the
// split under its path.
func (b *Builder) AddNews(path string, ids []string) {
	news := make([]int32, 0, len(ids))
	for _, id := range ids {
		news = append(news, b.news.NotCount(id))
	}
	b.source.RegisterNews(path, news)
}

// AddBehaviors indexes an impression log and registers the split under its
// path. Impressions are numbered in record order.
func (b *Builder) AddBehaviors(path string, records []RawBehavior) error {
	behaviors := &Behaviors{
		History: make(map[int32][]int32),
	}
	for i, record := range records {
		if len(record.Candidates) != len(record.Labels) {
			return errors.NotValidf("record %d: %d candidates with %d labels",
				i, len(record.Candidates), len(record.Labels))
		}
		user := b.users.Id(record.User)
		if _, ok := behaviors.History[user]; !ok {
			history := make([]int32, 0, len(record.History))
			for _, id := range record.History {
				history = append(history, b.news.Id(id))
			}
			behaviors.History[user] = history
		}
		candidates := make([]int32, 0, len(record.Candidates))
		for _, id := range record.Candidates {
			candidates = append(candidates, b.news.Id(id))
		}
		behaviors.Impressions = append(behaviors.Impressions, model.Impression{
			Index:     int32(i),
			UserIndex: user,
			NewsIndex: candidates,
			Labels:    record.Labels,
		})
	}
	b.source.RegisterBehaviors(path, behaviors)
	return nil
}
