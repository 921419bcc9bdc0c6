package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/message"

	"kiosk/scan"
)

const DecodedScansTopic = "scans.decoded"

// StreamSource delivers decoded QR texts published on a redis stream, one
// message per scan. The payload is the decoded text as is.
type StreamSource struct {
	subscriber message.Subscriber
	topic      string
}

func NewStreamSource(subscriber message.Subscriber, topic string) *StreamSource {
	if subscriber == nil {
		panic("subscriber is nil")
	}
	if topic == "" {
		topic = DecodedScansTopic
	}

	return &StreamSource{subscriber: subscriber, topic: topic}
}

func (s *StreamSource) Subscribe(ctx context.Context, onText func(text string)) (scan.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)

	messages, err := s.subscriber.Subscribe(ctx, s.topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("could not subscribe to %s: %w", s.topic, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range messages {
			onText(string(msg.Payload))
			msg.Ack()
		}
		log.FromContext(ctx).WithField("topic", s.topic).Debug("Scan stream closed")
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}
