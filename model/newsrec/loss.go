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
	"github.com/chewxy/math32"
)

const lossEpsilon = 1e-7

// Loss computes the loss of one impression row over its candidate scores and
// writes the gradient with respect to the raw scores.
type Loss interface {
	Name() string
	Loss(scores, labels []float32) float32
	Grad(scores, labels, grad []float32)
}

// crossEntropyLoss is the categorical cross entropy over a softmax of the
// candidate scores. The gradient of the softmax and the log collapse to
// probability minus label.
type crossEntropyLoss struct{}

func (crossEntropyLoss) Name() string {
	return CrossEntropyLoss
}

func (crossEntropyLoss) Loss(scores, labels []float32) float32 {
	prob := softmax(scores)
	var loss float32
	for i, y := range labels {
		if y > 0 {
			loss -= y * math32.Log(prob[i]+lossEpsilon)
		}
	}
	return loss
}

func (crossEntropyLoss) Grad(scores, labels, grad []float32) {
	prob := softmax(scores)
	for i := range scores {
		grad[i] = prob[i] - labels[i]
	}
}

// logLoss is the binary cross entropy of each candidate scored through a
// sigmoid, summed over the row.
type logLoss struct{}

func (logLoss) Name() string {
	return LogLoss
}

func (logLoss) Loss(scores, labels []float32) float32 {
	var loss float32
	for i, y := range labels {
		prob := sigmoid(scores[i])
		loss -= y*math32.Log(prob+lossEpsilon) + (1-y)*math32.Log(1-prob+lossEpsilon)
	}
	return loss
}

func (logLoss) Grad(scores, labels, grad []float32) {
	for i := range scores {
		grad[i] = sigmoid(scores[i]) - labels[i]
	}
}

func softmax(scores []float32) []float32 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	prob := make([]float32, len(scores))
	var sum float32
	for i, s := range scores {
		prob[i] = math32.Exp(s - max)
		sum += prob[i]
	}
	for i := range prob {
		prob[i] /= sum
	}
	return prob
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}
