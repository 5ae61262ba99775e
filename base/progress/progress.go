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

package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKeyType string

var spanKeyName = spanKeyType(uuid.New().String())

type Status string

const (
	StatusPending  Status = "Pending"
	StatusComplete Status = "Complete"
	StatusRunning  Status = "Running"
	StatusFailed   Status = "Failed"
)

// Tracer tracks the progress of long-running passes such as training epochs
// and evaluation sweeps.
type Tracer struct {
	name  string
	spans sync.Map
}

func NewTracer(name string) *Tracer {
	return &Tracer{name: name}
}

// Start creates a root span.
func (t *Tracer) Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	span := &Span{
		name:   name,
		status: StatusRunning,
		total:  total,
		start:  time.Now(),
	}
	t.spans.Store(name, span)
	return context.WithValue(ctx, spanKeyName, span), span
}

// List returns the progress of all root spans.
func (t *Tracer) List() []Progress {
	var progress []Progress
	t.spans.Range(func(_, value interface{}) bool {
		span := value.(*Span)
		p := span.Progress()
		p.Tracer = t.name
		progress = append(progress, p)
		return true
	})
	return progress
}

type Span struct {
	mu       sync.Mutex
	name     string
	status   Status
	total    int
	count    int
	err      error
	start    time.Time
	finish   time.Time
	parent   *Span
	children sync.Map
}

func (s *Span) Add(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count += n
}

func (s *Span) End() {
	s.mu.Lock()
	s.count = s.total
	s.status = StatusComplete
	s.finish = time.Now()
	s.mu.Unlock()
	if s.parent != nil {
		s.parent.children.Delete(s.name)
	}
}

// Fail marks the span and all of its ancestors as failed.
func (s *Span) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.status = StatusFailed
	s.finish = time.Now()
	s.mu.Unlock()
	if s.parent != nil {
		s.parent.children.Delete(s.name)
		s.parent.Fail(err)
	}
}

func (s *Span) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Progress reports the span progress. An active child span scales the
// parent's counters so that nested passes show smooth progress.
func (s *Span) Progress() Progress {
	s.mu.Lock()
	count, total := s.count, s.total
	status := s.status
	errMsg := ""
	if s.err != nil {
		errMsg = s.err.Error()
	}
	start, finish := s.start, s.finish
	name := s.name
	s.mu.Unlock()
	s.children.Range(func(_, value interface{}) bool {
		child := value.(*Span).Progress()
		total = s.total * child.Total
		count = s.count*child.Total + child.Count
		return false
	})
	return Progress{
		Name:       name,
		Status:     status,
		Error:      errMsg,
		Count:      count,
		Total:      total,
		StartTime:  start,
		FinishTime: finish,
	}
}

// Start creates a child span under the span carried by the context. Without
// a parent span in the context, the child span is standalone.
func Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	childSpan := &Span{
		name:   name,
		status: StatusRunning,
		total:  total,
		start:  time.Now(),
	}
	if ctx == nil {
		return nil, childSpan
	}
	span, ok := ctx.Value(spanKeyName).(*Span)
	if !ok {
		return ctx, childSpan
	}
	childSpan.parent = span
	span.children.Store(name, childSpan)
	return context.WithValue(ctx, spanKeyName, childSpan), childSpan
}

// Fail marks the span carried by the context as failed.
func Fail(ctx context.Context, err error) {
	if ctx == nil {
		return
	}
	if span, ok := ctx.Value(spanKeyName).(*Span); ok {
		span.Fail(err)
	}
}

type Progress struct {
	Tracer     string
	Name       string
	Status     Status
	Error      string
	Count      int
	Total      int
	StartTime  time.Time
	FinishTime time.Time
}
