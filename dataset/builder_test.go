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
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestBuilder(t *testing.T) {
	source := NewSource(10)
	builder := NewBuilder(source)
	builder.AddNews("news", []string{"N1", "N2", "N3"})
	err := builder.AddBehaviors("behaviors", []RawBehavior{
		{User: "U1", History: []string{"N1"}, Candidates: []string{"N2", "N3"}, Labels: []float32{1, 0}},
		{User: "U2", History: []string{"N2", "N4"}, Candidates: []string{"N1"}, Labels: []float32{1}},
	})
	assert.NoError(t, err)
	// N4 appears only in a history and still gets an index
	assert.Equal(t, int32(4), builder.NewsCount())

	impressions, err := source.LoadImpressions("behaviors")
	assert.NoError(t, err)
	first, err := impressions.Next()
	assert.NoError(t, err)
	assert.Equal(t, int32(0), first.Index)
	assert.Equal(t, []int32{1, 2}, first.NewsIndex)
	second, err := impressions.Next()
	assert.NoError(t, err)
	assert.Equal(t, int32(1), second.Index)
	assert.Equal(t, []int32{0}, second.NewsIndex)
	assert.NotEqual(t, first.UserIndex, second.UserIndex)
	_, err = impressions.Next()
	assert.ErrorIs(t, err, io.EOF)

	news, err := source.LoadNews("news")
	assert.NoError(t, err)
	batch, err := news.Next()
	assert.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 2}, batch.Index)
}

func TestBuilderMisalignedRecord(t *testing.T) {
	builder := NewBuilder(NewSource(10))
	err := builder.AddBehaviors("behaviors", []RawBehavior{
		{User: "U1", Candidates: []string{"N1"}, Labels: []float32{1, 0}},
	})
	assert.True(t, errors.IsNotValid(err))
}
