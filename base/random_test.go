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

package base

import (
	"testing"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
)

const randomEpsilon = 0.1

func TestUniformVector(t *testing.T) {
	vec := NewRandomGenerator(0).UniformVector(10000, 1, 2)
	var sum float32
	for _, v := range vec {
		assert.GreaterOrEqual(t, v, float32(1))
		assert.Less(t, v, float32(2))
		sum += v
	}
	assert.InDelta(t, 1.5, sum/float32(len(vec)), randomEpsilon)
}

func TestNormalVector(t *testing.T) {
	vec := NewRandomGenerator(0).NormalVector(10000, 1, 2)
	var sum float32
	for _, v := range vec {
		sum += v
	}
	mean := sum / float32(len(vec))
	assert.InDelta(t, 1, mean, randomEpsilon)
	var sumSq float32
	for _, v := range vec {
		sumSq += (v - mean) * (v - mean)
	}
	assert.InDelta(t, 2, math32.Sqrt(sumSq/float32(len(vec))), randomEpsilon)
}

func TestNormalMatrix(t *testing.T) {
	mat := NewRandomGenerator(0).NormalMatrix(10, 1000, 1, 2)
	var sum float32
	for _, row := range mat {
		for _, v := range row {
			sum += v
		}
	}
	assert.InDelta(t, 1, sum/10000, randomEpsilon)
}

func TestSampleInt32(t *testing.T) {
	exclude := mapset.NewSet[int32](0, 1, 2, 3, 4)
	sampled := NewRandomGenerator(0).SampleInt32(0, 10, 5, exclude)
	assert.Len(t, sampled, 5)
	seen := mapset.NewSet[int32]()
	for _, v := range sampled {
		assert.GreaterOrEqual(t, v, int32(5))
		assert.Less(t, v, int32(10))
		assert.False(t, seen.Contains(v))
		seen.Add(v)
	}
}

func TestDeterminism(t *testing.T) {
	a := NewRandomGenerator(42).NormalVector(100, 0, 1)
	b := NewRandomGenerator(42).NormalVector(100, 0, 1)
	assert.Equal(t, a, b)
}
