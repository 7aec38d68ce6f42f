// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package domain

import (
	"context"
	"time"

	"storyline/modules/clock"
	"storyline/modules/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultCascadeTimeout = 5 * time.Second

type (
	Application struct {
		reader ProfileReadStore
		writer ProfileWriteStore

		locker  TaskLocker
		events  EventPublisher
		clock   clock.Clock
		tracer  trace.Tracer
		metrics *telemetry.CascadeMetrics

		cascadeTimeout time.Duration
		// parallelism for compensation of the bulk rename steps
		compensationWorkers int
	}

	Option func(*Application)
)

// WithLocker serializes updates of the same username. Without one, concurrent
// updates of a username are not serialized.
func WithLocker(l TaskLocker) Option {
	return func(a *Application) {
		if l != nil {
			a.locker = l
		}
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(a *Application) {
		if p != nil {
			a.events = p
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(a *Application) {
		if c != nil {
			a.clock = c
		}
	}
}

func WithMetrics(m *telemetry.CascadeMetrics) Option {
	return func(a *Application) { a.metrics = m }
}

// WithCascadeTimeout bounds the whole profile replacement and rename cascade.
func WithCascadeTimeout(d time.Duration) Option {
	return func(a *Application) {
		if d > 0 {
			a.cascadeTimeout = d
		}
	}
}

func WithCompensationWorkers(n int) Option {
	return func(a *Application) {
		if n > 0 {
			a.compensationWorkers = n
		}
	}
}

func NewApp(reader ProfileReadStore, writer ProfileWriteStore, opts ...Option) *Application {
	app := &Application{
		reader:              reader,
		writer:              writer,
		locker:              nopLocker{},
		events:              nopPublisher{},
		clock:               clock.RealClockProvider(),
		tracer:              otel.Tracer("storyline/core/profile"),
		cascadeTimeout:      defaultCascadeTimeout,
		compensationWorkers: 4,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app
}

type nopLocker struct{}

func (nopLocker) WithLock(ctx context.Context, _ string, task func(ctx context.Context) error) error {
	return task(ctx)
}

type nopPublisher struct{}

func (nopPublisher) PublishProfileRenamed(context.Context, ProfileRenamed) error { return nil }
