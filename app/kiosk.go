package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"kiosk/checkin"
	"kiosk/config"
	"kiosk/http"
	"kiosk/pubsub"
	"kiosk/scan"
)

type Kiosk struct {
	lifecycle  *checkin.Lifecycle
	scanners   []*scan.Scanner
	httpServer *http.Server

	// closed once Run returns
	subscribers []message.Subscriber
}

// NewKiosk assembles a kiosk around fetcher and sink. Scans come from the
// HTTP API, from stdin when it is given and from the redis scan stream when
// redisClient is set. redisClient also carries the kiosk events.
func NewKiosk(
	cfg config.Kiosk,
	fetcher checkin.BadgeFetcher,
	sink checkin.PDFSink,
	redisClient *redis.Client,
	stdin io.Reader,
) (*Kiosk, error) {
	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	var listener checkin.Listener
	var sources []*scan.Scanner
	var subscribers []message.Subscriber

	lifecycleConfig := checkin.Config{
		Cooldown:       cfg.Cooldown,
		RequestTimeout: cfg.RequestTimeout,
		AutoDismiss:    cfg.AutoDismiss,
	}

	if redisClient != nil {
		eventBus, err := pubsub.NewEventBus(pubsub.NewRedisPublisher(redisClient, watermillLogger))
		if err != nil {
			return nil, fmt.Errorf("could not create event bus: %w", err)
		}
		listener = pubsub.NewLifecycleEvents(eventBus)
	}

	lifecycle := checkin.New(fetcher, sink, listener, lifecycleConfig)
	onText := func(text string) {
		lifecycle.HandleScan(text)
	}

	if redisClient != nil {
		// no consumer group, every kiosk sees every scan
		subscriber, err := pubsub.NewRedisSubscriber(redisClient, "", watermillLogger)
		if err != nil {
			return nil, fmt.Errorf("could not create scan subscriber: %w", err)
		}
		subscribers = append(subscribers, subscriber)
		sources = append(sources, scan.NewScanner("stream", pubsub.NewStreamSource(subscriber, cfg.ScanTopic), onText))
	}

	if stdin != nil {
		sources = append(sources, scan.NewScanner("stdin", scan.NewLineSource(stdin), onText))
	}

	return &Kiosk{
		lifecycle:   lifecycle,
		scanners:    sources,
		httpServer:  http.NewServer(cfg.HTTPAddr, lifecycle),
		subscribers: subscribers,
	}, nil
}

func (k *Kiosk) Run(ctx context.Context) (err error) {
	defer func() {
		for _, subscriber := range k.subscribers {
			if closeErr := subscriber.Close(); closeErr != nil {
				err = errors.Join(err, fmt.Errorf("could not close scan subscriber: %w", closeErr))
			}
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return k.lifecycle.Run(ctx)
	})

	for _, scanner := range k.scanners {
		scanner := scanner
		g.Go(func() error {
			log.FromContext(ctx).WithField("source", scanner.Name()).Info("Listening for scans")
			return scanner.Run(ctx)
		})
	}

	g.Go(func() error {
		return k.httpServer.Run(ctx)
	})

	return g.Wait()
}
