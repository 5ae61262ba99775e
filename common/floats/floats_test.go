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

package floats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDot(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}
	assert.Equal(t, float32(32), Dot(a, b))
	assert.Panics(t, func() { Dot(a, b[:2]) })
}

func TestAdd(t *testing.T) {
	a := []float32{1, 2, 3}
	Add(a, []float32{4, 5, 6})
	assert.Equal(t, []float32{5, 7, 9}, a)
}

func TestSubTo(t *testing.T) {
	dst := make([]float32, 3)
	SubTo([]float32{4, 5, 6}, []float32{1, 2, 3}, dst)
	assert.Equal(t, []float32{3, 3, 3}, dst)
}

func TestMulConst(t *testing.T) {
	a := []float32{1, 2, 3}
	MulConst(a, 2)
	assert.Equal(t, []float32{2, 4, 6}, a)
}

func TestMulConstAdd(t *testing.T) {
	dst := []float32{1, 1, 1}
	MulConstAdd([]float32{1, 2, 3}, 2, dst)
	assert.Equal(t, []float32{3, 5, 7}, dst)
}

func TestMean(t *testing.T) {
	assert.Equal(t, float32(2), Mean([]float32{1, 2, 3}))
	assert.Zero(t, Mean(nil))
}

func TestZero(t *testing.T) {
	a := []float32{1, 2, 3}
	Zero(a)
	assert.Equal(t, []float32{0, 0, 0}, a)
	m := [][]float32{{1}, {2}}
	MatZero(m)
	assert.Equal(t, [][]float32{{0}, {0}}, m)
}
