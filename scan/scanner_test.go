package scan

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sourceMock struct {
	lock          sync.Mutex
	subscriptions int
	active        int
}

func (s *sourceMock) Subscribe(ctx context.Context, onText func(text string)) (Unsubscribe, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.subscriptions++
	s.active++

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lock.Lock()
			defer s.lock.Unlock()
			s.active--
		})
	}, nil
}

func TestScanner_StartStopIdempotent(t *testing.T) {
	source := &sourceMock{}
	scanner := NewScanner("mock", source, func(string) {})

	ctx := context.Background()
	require.NoError(t, scanner.Start(ctx))
	require.NoError(t, scanner.Start(ctx))
	assert.True(t, scanner.Running())

	scanner.Stop()
	scanner.Stop()
	assert.False(t, scanner.Running())

	assert.Equal(t, 1, source.subscriptions)
	assert.Equal(t, 0, source.active)

	require.NoError(t, scanner.Start(ctx))
	assert.Equal(t, 2, source.subscriptions)
	scanner.Stop()
}

func TestLineSource(t *testing.T) {
	input := strings.NewReader("TKT-001\n\nhttps://x.test/checkin/TKT-002\n")

	var lock sync.Mutex
	var received []string

	unsubscribe, err := NewLineSource(input).Subscribe(context.Background(), func(text string) {
		lock.Lock()
		defer lock.Unlock()
		received = append(received, text)
	})
	require.NoError(t, err)
	defer unsubscribe()

	assert.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			lock.Lock()
			defer lock.Unlock()
			assert.Equal(t, []string{"TKT-001", "", "https://x.test/checkin/TKT-002"}, received)
		},
		time.Second,
		10*time.Millisecond,
	)
}
