package scan

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

// Unsubscribe stops delivery of decoded text. It is safe to call more than once.
type Unsubscribe func()

// Source is a stream of decoded QR text.
type Source interface {
	Subscribe(ctx context.Context, onText func(text string)) (Unsubscribe, error)
}

// LineSource reads one code per line, the way keyboard-wedge QR readers type them.
type LineSource struct {
	r io.Reader
}

func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{r: r}
}

func (s *LineSource) Subscribe(ctx context.Context, onText func(text string)) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer cancel()

		scanner := bufio.NewScanner(s.r)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			onText(scanner.Text())
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			log.FromContext(ctx).WithError(err).Error("line scan source stopped")
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}
