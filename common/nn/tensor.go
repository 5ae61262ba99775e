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

package nn

import (
	"fmt"
	"math/rand"
	"strings"
)

// Tensor is a dense float32 tensor with an optional gradient of the same
// shape. Gradients are accumulated by models and consumed by optimizers.
type Tensor struct {
	data  []float32
	shape []int
	grad  *Tensor
}

func NewTensor(data []float32, shape ...int) *Tensor {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if len(data) != n {
		panic(fmt.Sprintf("nn: shape %v does not match data length %d", shape, len(data)))
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape ...int) *Tensor {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return &Tensor{
		data:  make([]float32, n),
		shape: shape,
	}
}

// Ones creates a tensor filled with ones.
func Ones(shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = 1
	}
	return t
}

// Normal creates a tensor filled with normal random floats.
func Normal(mean, stdDev float32, shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = float32(rand.NormFloat64())*stdDev + mean
	}
	return t
}

func (t *Tensor) Data() []float32 {
	return t.data
}

func (t *Tensor) Shape() []int {
	return t.shape
}

// Slice returns the i-th row of a 2-D tensor as a view.
func (t *Tensor) Slice(i int) []float32 {
	if len(t.shape) != 2 {
		panic("nn: Slice expects a 2-D tensor")
	}
	cols := t.shape[1]
	return t.data[i*cols : (i+1)*cols]
}

// Grad returns the gradient tensor, allocating a zero gradient on first use.
func (t *Tensor) Grad() *Tensor {
	if t.grad == nil {
		t.grad = Zeros(t.shape...)
	}
	return t.grad
}

// GradSlice returns the i-th row of the gradient of a 2-D tensor.
func (t *Tensor) GradSlice(i int) []float32 {
	return t.Grad().Slice(i)
}

func (t *Tensor) String() string {
	// Print scalar value
	if len(t.shape) == 0 {
		return fmt.Sprint(t.data[0])
	}

	builder := strings.Builder{}
	builder.WriteString("[")
	if len(t.data) <= 10 {
		for i := 0; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	} else {
		for i := 0; i < 5; i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			builder.WriteString(", ")
		}
		builder.WriteString("..., ")
		for i := len(t.data) - 5; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	}
	builder.WriteString("]")
	return builder.String()
}
