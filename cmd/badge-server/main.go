package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jessevdk/go-flags"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"kiosk/api"
	"kiosk/app"
	"kiosk/badgepdf"
	"kiosk/config"
	dbLib "kiosk/db"
	"kiosk/db/attendees"
	"kiosk/pubsub"
	"kiosk/tracing"
)

func main() {
	log.Init(logrus.InfoLevel)

	cfg, err := config.LoadBadgeServer(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			return
		}
		panic(err)
	}
	if cfg.Debug {
		log.Init(logrus.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	traceProvider, err := tracing.ConfigureTraceProvider("badge-server", cfg.JaegerEndpoint)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := traceProvider.Shutdown(context.Background()); err != nil {
			logrus.WithError(err).Error("failed to shutdown trace provider")
		}
	}()

	var db *sqlx.DB
	if cfg.PostgresURL != "" {
		db, err = dbLib.Open(cfg.PostgresURL)
		if err != nil {
			panic(err)
		}
		defer db.Close()
	}

	var repo api.AttendeeRepository
	var storeInfo api.StoreInfo

	switch cfg.AttendeeStore {
	case "dynamo":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			panic(fmt.Errorf("could not load AWS config: %w", err))
		}
		repo = attendees.NewDynamoRepository(dynamodb.NewFromConfig(awsCfg), cfg.TableName, cfg.TicketGSIName)
		storeInfo = api.StoreInfo{
			Store:  "dynamo",
			Table:  cfg.TableName,
			GSI:    cfg.TicketGSIName,
			Region: cfg.AWSRegion,
		}
	default:
		repo = attendees.NewPostgresRepository(db)
		storeInfo = api.StoreInfo{Store: "postgres"}
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = pubsub.NewRedisClient(cfg.RedisAddr)
		defer redisClient.Close()
	}

	server, err := app.NewBadgeServer(
		cfg.HTTPAddr,
		db,
		redisClient,
		repo,
		badgepdf.NewRenderer(cfg.EventTitle, ""),
		storeInfo,
	)
	if err != nil {
		panic(err)
	}

	if err := server.Run(ctx); err != nil {
		panic(err)
	}
}
