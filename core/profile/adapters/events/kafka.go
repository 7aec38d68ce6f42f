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

// Package events publishes profile lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storyline/core/profile/domain"

	"github.com/segmentio/kafka-go"
)

const EventProfileRenamed = "profile.renamed"

var _ domain.EventPublisher = (*KafkaPublisher)(nil)

type KafkaConfig struct {
	// Brokers is a comma separated list of host:port. Empty disables publishing.
	Brokers      []string      `env:"BROKERS"       envSeparator:","`
	Topic        string        `env:"TOPIC"         envDefault:"profile.renamed"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"5s"`
}

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per event, keyed by the old username.
// Renames away from one username share a partition. A chain such as A to B
// to C is keyed A then B, so consumers must not rely on its order.
type KafkaPublisher struct {
	w messageWriter
}

type profileRenamedPayload struct {
	OldUsername string    `json:"oldUsername"`
	NewUsername string    `json:"newUsername"`
	RenamedAt   time.Time `json:"renamedAt"`
}

func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic must not be empty")
	}
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: cfg.WriteTimeout,
		},
	}, nil
}

func (p *KafkaPublisher) PublishProfileRenamed(ctx context.Context, e domain.ProfileRenamed) error {
	value, err := json.Marshal(profileRenamedPayload(e))
	if err != nil {
		return fmt.Errorf("kafka: encode %s: %w", EventProfileRenamed, err)
	}

	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.OldUsername),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventProfileRenamed)},
		},
		Time: e.RenamedAt,
	})
	if err != nil {
		return fmt.Errorf("kafka: publish %s: %w", EventProfileRenamed, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error { return p.w.Close() }
