package gateway

import (
	"context"
	"sync"

	"kiosk/entity"
)

// BadgeMock answers FetchBadge from Badges, or with Errors for ticket ids
// listed there. When Block is set, calls wait for it to close or for ctx.
type BadgeMock struct {
	lock sync.Mutex

	Badges map[string]entity.Badge
	Errors map[string]error
	Block  chan struct{}

	Requests []string
}

func (c *BadgeMock) FetchBadge(ctx context.Context, ticketID string) (entity.Badge, error) {
	c.lock.Lock()
	c.Requests = append(c.Requests, ticketID)
	block := c.Block
	c.lock.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return entity.Badge{}, ctx.Err()
		}
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if err, ok := c.Errors[ticketID]; ok {
		return entity.Badge{}, err
	}

	badge, ok := c.Badges[ticketID]
	if !ok {
		return entity.Badge{}, entity.ErrNotFound
	}

	return badge, nil
}

func (c *BadgeMock) RequestCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return len(c.Requests)
}
