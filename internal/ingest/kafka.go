package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"

	"tsprep/internal/model"
)

// ObservationMessage is the wire form on the observations topic. A null or
// absent value is an explicit gap.
type ObservationMessage struct {
	Timestamp string   `json:"timestamp"` // model.TimestampLayout, UTC
	Value     *float64 `json:"value"`
	ItemID    string   `json:"itemId,omitempty"`
}

// messageReader abstracts the confluent consumer for testability.
type messageReader interface {
	ReadMessage(timeout time.Duration) (*ck.Message, error)
}

// KafkaSource drains one batch of observations from a topic: it reads until
// no message arrives within the idle timeout, then returns what it has.
type KafkaSource struct {
	consumer messageReader
	closer   interface{ Close() error }
	idle     time.Duration
	log      logrus.FieldLogger
}

func NewKafkaSource(bootstrap, groupID, topic string, idle time.Duration, log logrus.FieldLogger) (*KafkaSource, error) {
	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"group.id":           groupID,
		"enable.auto.commit": false,
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	if err := c.SubscribeTopics([]string{topic}, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return &KafkaSource{consumer: c, closer: c, idle: idle, log: log}, nil
}

// NewKafkaSourceWith is only for tests to inject a fake consumer.
func NewKafkaSourceWith(r messageReader, idle time.Duration, log logrus.FieldLogger) *KafkaSource {
	return &KafkaSource{consumer: r, idle: idle, log: log}
}

func (s *KafkaSource) Load(ctx context.Context) ([]model.Observation, error) {
	var obs []model.Observation
	for {
		select {
		case <-ctx.Done():
			return obs, ctx.Err()
		default:
		}
		msg, err := s.consumer.ReadMessage(s.idle)
		if err != nil {
			if kerr, ok := err.(ck.Error); ok && kerr.Code() == ck.ErrTimedOut {
				s.log.WithField("count", len(obs)).Info("observation batch drained")
				return obs, nil
			}
			return obs, fmt.Errorf("read message: %w", err)
		}
		var om ObservationMessage
		if err := json.Unmarshal(msg.Value, &om); err != nil {
			s.log.WithError(err).Warn("skipping malformed observation")
			continue
		}
		ts, err := model.ParseTimestamp(om.Timestamp)
		if err != nil {
			s.log.WithError(err).WithField("timestamp", om.Timestamp).Warn("skipping observation with bad timestamp")
			continue
		}
		v := math.NaN()
		if om.Value != nil {
			v = *om.Value
		}
		obs = append(obs, model.Observation{Timestamp: ts, Value: v, ItemID: om.ItemID})
	}
}

func (s *KafkaSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
