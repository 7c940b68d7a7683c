package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/orderdesk/adminsearch/internal/platform/textutil"
)

// PubSubScheduler publishes scheduled jobs to a Pub/Sub topic so any API
// replica can pick up the next backfill batch. The delay is carried as a
// not-before attribute; the subscription side nacks messages until due.
type PubSubScheduler struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
	clock   func() time.Time
}

// NewPubSubScheduler constructs a Pub/Sub backed scheduler.
func NewPubSubScheduler(topic *pubsub.Topic) (*PubSubScheduler, error) {
	if topic == nil {
		return nil, errors.New("pubsub scheduler: topic is required")
	}
	return &PubSubScheduler{
		topic:   topic,
		marshal: json.Marshal,
		clock:   time.Now,
	}, nil
}

// Schedule implements Scheduler.
func (s *PubSubScheduler) Schedule(ctx context.Context, job Job, delay time.Duration) error {
	if s == nil || s.topic == nil {
		return errors.New("pubsub scheduler: not initialised")
	}
	if strings.TrimSpace(job.Name) == "" {
		return errors.New("pubsub scheduler: job name is required")
	}

	data, err := s.marshal(textutil.NormalizeStringMap(job.Payload))
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	if delay < 0 {
		delay = 0
	}
	notBefore := s.clock().UTC().Add(delay)

	attrs := map[string]string{
		"job":        job.Name,
		"not_before": strconv.FormatInt(notBefore.Unix(), 10),
	}

	result := s.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish job %s: %w", job.Name, err)
	}
	return nil
}
