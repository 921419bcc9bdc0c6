package app

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"kiosk/api"
	"kiosk/badgepdf"
	dbLib "kiosk/db"
	"kiosk/db/checkins"
	"kiosk/pubsub"
)

type BadgeServer struct {
	db              *sqlx.DB
	watermillRouter *message.Router
	forwarder       *forwarder.Forwarder
	httpServer      *api.Server
}

// NewBadgeServer assembles the badge backend. db may be nil when attendees
// live in DynamoDB. With db and redisClient set, check-ins are forwarded from
// the outbox and projected into the check-in read model.
func NewBadgeServer(
	addr string,
	db *sqlx.DB,
	redisClient *redis.Client,
	attendees api.AttendeeRepository,
	renderer badgepdf.Renderer,
	storeInfo api.StoreInfo,
) (*BadgeServer, error) {
	server := &BadgeServer{db: db}

	var readModel api.CheckInReadModel
	if db != nil && redisClient != nil {
		watermillLogger := log.NewWatermill(log.FromContext(context.Background()))
		redisPublisher := pubsub.NewRedisPublisher(redisClient, watermillLogger)

		checkInReadModel := checkins.NewReadModel(db)
		readModel = checkInReadModel

		router, err := pubsub.NewWatermillRouter(
			pubsub.NewEventProcessorConfig(redisClient, "svc-badges", watermillLogger),
			checkInReadModel,
			watermillLogger,
		)
		if err != nil {
			return nil, err
		}
		server.watermillRouter = router

		fwd, err := pubsub.NewOutboxForwarder(db, redisPublisher, watermillLogger)
		if err != nil {
			return nil, err
		}
		server.forwarder = fwd
	}

	server.httpServer = api.NewServer(addr, attendees, renderer, readModel, storeInfo)

	return server, nil
}

func (s *BadgeServer) Run(ctx context.Context) error {
	if s.db != nil {
		if err := dbLib.InitializeDatabaseSchema(s.db); err != nil {
			return fmt.Errorf("failed to initialize database schema: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if s.watermillRouter != nil {
		g.Go(func() error {
			return s.watermillRouter.Run(ctx)
		})
	}

	if s.forwarder != nil {
		g.Go(func() error {
			return s.forwarder.Run(ctx)
		})
	}

	g.Go(func() error {
		// not healthy before the router is ready
		if s.watermillRouter != nil {
			select {
			case <-s.watermillRouter.Running():
			case <-ctx.Done():
				return nil
			}
		}

		return s.httpServer.Run(ctx)
	})

	return g.Wait()
}
