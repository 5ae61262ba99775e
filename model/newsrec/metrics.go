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
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"modernc.org/sortutil"
)

type metricFunc func(labels, preds [][]float32) float64

type metric struct {
	name string
	eval metricFunc
}

// resolveMetrics expands metric names into evaluable metrics. A ranking
// metric may carry several cutoffs separated by semicolons, as in
// "ndcg@5;10", and expands into one metric per cutoff.
func resolveMetrics(names []string) ([]metric, error) {
	var metrics []metric
	for _, name := range names {
		switch {
		case name == "auc":
			metrics = append(metrics, metric{name: name, eval: aucScore})
		case name == "group_auc":
			metrics = append(metrics, metric{name: name, eval: groupAUCScore})
		case name == "mean_mrr":
			metrics = append(metrics, metric{name: name, eval: mrrScore})
		case strings.HasPrefix(name, "ndcg@"):
			ks, err := parseCutoffs(name)
			if err != nil {
				return nil, errors.Trace(err)
			}
			for _, k := range ks {
				k := k
				metrics = append(metrics, metric{
					name: fmt.Sprintf("ndcg@%d", k),
					eval: func(labels, preds [][]float32) float64 {
						return ndcgScore(labels, preds, k)
					},
				})
			}
		case strings.HasPrefix(name, "hit@"):
			ks, err := parseCutoffs(name)
			if err != nil {
				return nil, errors.Trace(err)
			}
			for _, k := range ks {
				k := k
				metrics = append(metrics, metric{
					name: fmt.Sprintf("hit@%d", k),
					eval: func(labels, preds [][]float32) float64 {
						return hitScore(labels, preds, k)
					},
				})
			}
		default:
			return nil, errors.NotValidf("metric %q", name)
		}
	}
	return metrics, nil
}

func parseCutoffs(name string) ([]int, error) {
	_, cutoffs, _ := strings.Cut(name, "@")
	var ks []int
	for _, field := range strings.Split(cutoffs, ";") {
		k, err := strconv.Atoi(field)
		if err != nil || k <= 0 {
			return nil, errors.NotValidf("metric %q", name)
		}
		ks = append(ks, k)
	}
	return ks, nil
}

// CalcMetrics evaluates named metrics over grouped labels and predictions.
// Groups must be aligned: labels[i] and preds[i] belong to the same
// impression and have the same length.
func CalcMetrics(labels, preds [][]float32, names []string) (map[string]float64, error) {
	metrics, err := resolveMetrics(names)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(labels) != len(preds) {
		return nil, errors.NotValidf("%d label groups against %d prediction groups", len(labels), len(preds))
	}
	scores := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		scores[m.name] = m.eval(labels, preds)
	}
	return scores, nil
}

// aucScore computes the AUC over all candidates pooled across groups. The
// negative scores are sorted once so each positive ranks against them by
// binary search.
func aucScore(labels, preds [][]float32) float64 {
	var positives, negatives []float32
	for i := range labels {
		for j, y := range labels[i] {
			if y > 0 {
				positives = append(positives, preds[i][j])
			} else {
				negatives = append(negatives, preds[i][j])
			}
		}
	}
	return binaryAUC(positives, negatives)
}

func binaryAUC(positives, negatives []float32) float64 {
	if len(positives) == 0 || len(negatives) == 0 {
		return math.NaN()
	}
	sort.Sort(sortutil.Float32Slice(negatives))
	var sum float64
	for _, p := range positives {
		// negatives strictly below count 1, ties count 1/2
		below := sort.Search(len(negatives), func(i int) bool { return negatives[i] >= p })
		tied := sort.Search(len(negatives), func(i int) bool { return negatives[i] > p }) - below
		sum += float64(below) + float64(tied)/2
	}
	return sum / float64(len(positives)) / float64(len(negatives))
}

// groupAUCScore averages the AUC of each decidable group. Groups whose
// labels are all positive or all negative carry no ranking information and
// are skipped.
func groupAUCScore(labels, preds [][]float32) float64 {
	var sum float64
	var count int
	for i := range labels {
		var positives, negatives []float32
		for j, y := range labels[i] {
			if y > 0 {
				positives = append(positives, preds[i][j])
			} else {
				negatives = append(negatives, preds[i][j])
			}
		}
		if len(positives) == 0 || len(negatives) == 0 {
			continue
		}
		sum += binaryAUC(positives, negatives)
		count++
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

// mrrScore averages the mean reciprocal rank of the positives in each group.
func mrrScore(labels, preds [][]float32) float64 {
	var sum float64
	for i := range labels {
		order := argsortDescending(preds[i])
		var rr, total float64
		for rank, j := range order {
			if labels[i][j] > 0 {
				rr += 1 / float64(rank+1)
			}
			total += float64(labels[i][j])
		}
		if total > 0 {
			sum += rr / total
		}
	}
	return sum / float64(len(labels))
}

// ndcgScore averages the normalized discounted cumulative gain at k.
func ndcgScore(labels, preds [][]float32, k int) float64 {
	var sum float64
	for i := range labels {
		best := dcg(labels[i], labels[i], k)
		if best == 0 {
			continue
		}
		sum += dcg(labels[i], preds[i], k) / best
	}
	return sum / float64(len(labels))
}

func dcg(labels, ranking []float32, k int) float64 {
	order := argsortDescending(ranking)
	if k > len(order) {
		k = len(order)
	}
	var score float64
	for rank := 0; rank < k; rank++ {
		gain := math.Pow(2, float64(labels[order[rank]])) - 1
		score += gain / math.Log2(float64(rank)+2)
	}
	return score
}

// hitScore averages the share of positives recalled in the top k.
func hitScore(labels, preds [][]float32, k int) float64 {
	var sum float64
	for i := range labels {
		var total float64
		for _, y := range labels[i] {
			total += float64(y)
		}
		if total == 0 {
			continue
		}
		order := argsortDescending(preds[i])
		top := k
		if top > len(order) {
			top = len(order)
		}
		var hits float64
		for rank := 0; rank < top; rank++ {
			hits += float64(labels[i][order[rank]])
		}
		sum += hits / total
	}
	return sum / float64(len(labels))
}

func argsortDescending(values []float32) []int {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] > values[order[b]]
	})
	return order
}
