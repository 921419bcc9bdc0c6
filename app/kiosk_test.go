package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk/config"
	"kiosk/gateway"
	"kiosk/pubsub"
	"kiosk/scan"
)

type subscriberMock struct {
	lock          sync.Mutex
	subscriptions int
	closed        int
}

func (s *subscriberMock) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.subscriptions++

	messages := make(chan *message.Message)
	go func() {
		<-ctx.Done()

		s.lock.Lock()
		s.subscriptions--
		s.lock.Unlock()

		close(messages)
	}()

	return messages, nil
}

func (s *subscriberMock) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed++
	return nil
}

func (s *subscriberMock) State() (subscriptions, closed int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.subscriptions, s.closed
}

func TestKiosk_RunClosesStreamSubscriber(t *testing.T) {
	kiosk, err := NewKiosk(
		config.Kiosk{HTTPAddr: "127.0.0.1:0"},
		&gateway.BadgeMock{},
		&gateway.PDFSinkMock{},
		nil,
		nil,
	)
	require.NoError(t, err)

	subscriber := &subscriberMock{}
	streamScanner := scan.NewScanner("stream", pubsub.NewStreamSource(subscriber, ""), func(text string) {
		kiosk.lifecycle.HandleScan(text)
	})
	kiosk.scanners = append(kiosk.scanners, streamScanner)
	kiosk.subscribers = append(kiosk.subscribers, subscriber)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- kiosk.Run(ctx)
	}()

	require.Eventually(t, streamScanner.Running, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("kiosk did not stop")
	}

	subscriptions, closed := subscriber.State()
	assert.Equal(t, 0, subscriptions, "the scan stream is unsubscribed before the subscriber is closed")
	assert.Equal(t, 1, closed)
}
