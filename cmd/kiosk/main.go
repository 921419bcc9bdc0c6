package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jessevdk/go-flags"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"kiosk/app"
	"kiosk/config"
	"kiosk/gateway"
	"kiosk/pubsub"
	"kiosk/tracing"
)

func main() {
	log.Init(logrus.InfoLevel)

	cfg, err := config.LoadKiosk(os.Args[1:])
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

	traceProvider, err := tracing.ConfigureTraceProvider("kiosk", cfg.JaegerEndpoint)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := traceProvider.Shutdown(context.Background()); err != nil {
			logrus.WithError(err).Error("failed to shutdown trace provider")
		}
	}()

	badgeClient, err := gateway.NewBadgeClient(cfg.APIURL, cfg.Mode, cfg.RequestTimeout)
	if err != nil {
		panic(err)
	}

	pdfSink, err := gateway.NewFileSink(cfg.PDFDir, cfg.OpenPDF)
	if err != nil {
		panic(err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = pubsub.NewRedisClient(cfg.RedisAddr)
		defer redisClient.Close()
	}

	var stdin io.Reader
	if cfg.Stdin {
		stdin = os.Stdin
	}

	kiosk, err := app.NewKiosk(cfg, badgeClient, pdfSink, redisClient, stdin)
	if err != nil {
		panic(err)
	}

	if err := kiosk.Run(ctx); err != nil {
		panic(err)
	}
}
