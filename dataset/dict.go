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

// FreqDict assigns dense indices to string identifiers and counts their
// occurrences.
type FreqDict struct {
	si  map[string]int32
	is  []string
	cnt []int
}

func NewFreqDict() (d *FreqDict) {
	d = &FreqDict{map[string]int32{}, []string{}, []int{}}
	return
}

func (d *FreqDict) Count() int32 {
	return int32(len(d.is))
}

// Id returns the index of a string, adding it to the dictionary and counting
// the occurrence.
func (d *FreqDict) Id(s string) (y int32) {
	if y, ok := d.si[s]; ok {
		d.cnt[y]++
		return y
	}

	y = int32(len(d.is))
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 1)
	return
}

// NotCount returns the index of a string, adding it to the dictionary
// without counting the occurrence.
func (d *FreqDict) NotCount(s string) (y int32) {
	if y, ok := d.si[s]; ok {
		return y
	}

	y = int32(len(d.is))
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 0)
	return
}

func (d *FreqDict) String(id int32) (s string, ok bool) {
	if id >= int32(len(d.is)) {
		return "", false
	}
	return d.is[id], true
}

func (d *FreqDict) Freq(id int32) int {
	if id >= int32(len(d.cnt)) {
		return 0
	}
	return d.cnt[id]
}
