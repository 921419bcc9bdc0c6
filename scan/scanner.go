package scan

import (
	"context"
	"fmt"
	"sync"
)

// Scanner owns one subscription to a Source. Start and Stop are idempotent,
// so a Scanner can be started by several callers without opening a second
// subscription.
type Scanner struct {
	name   string
	source Source
	onText func(text string)

	mu          sync.Mutex
	unsubscribe Unsubscribe
}

func NewScanner(name string, source Source, onText func(text string)) *Scanner {
	if source == nil {
		panic("source is nil")
	}
	if onText == nil {
		panic("onText is nil")
	}

	return &Scanner{
		name:   name,
		source: source,
		onText: onText,
	}
}

func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		return nil
	}

	unsubscribe, err := s.source.Subscribe(ctx, s.onText)
	if err != nil {
		return fmt.Errorf("could not subscribe to %s scan source: %w", s.name, err)
	}
	s.unsubscribe = unsubscribe

	return nil
}

func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe == nil {
		return
	}

	s.unsubscribe()
	s.unsubscribe = nil
}

func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.unsubscribe != nil
}

// Run starts the scanner and stops it once ctx is done.
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()

	return nil
}

func (s *Scanner) Name() string {
	return s.name
}
