// Package config reads the settings of both binaries from flags, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type Kiosk struct {
	APIURL         string        `long:"api-url" env:"KIOSK_API_URL" default:"http://localhost:8000" description:"Badge backend base URL"`
	Mode           string        `long:"mode" env:"KIOSK_MODE" default:"badge" choice:"badge" choice:"checkin" description:"Backend endpoint used for every scan"`
	Cooldown       time.Duration `long:"cooldown" env:"KIOSK_SCAN_COOLDOWN" default:"2s" description:"Window in which the same ticket is not admitted twice"`
	RequestTimeout time.Duration `long:"request-timeout" env:"KIOSK_REQUEST_TIMEOUT" default:"15s" description:"Timeout of a single badge request"`
	AutoDismiss    time.Duration `long:"auto-dismiss" env:"KIOSK_AUTO_DISMISS" default:"0s" description:"Return from the error screen after this delay, 0 disables it"`
	PDFDir         string        `long:"pdf-dir" env:"KIOSK_PDF_DIR" default:"badges" description:"Directory accepted badges are saved to"`
	OpenPDF        bool          `long:"open-pdf" env:"KIOSK_OPEN_PDF" description:"Open saved badges in the desktop PDF viewer"`
	Stdin          bool          `long:"stdin" env:"KIOSK_STDIN" description:"Read decoded codes line by line from stdin"`
	RedisAddr      string        `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address, enables the scan stream and kiosk events"`
	ScanTopic      string        `long:"scan-topic" env:"KIOSK_SCAN_TOPIC" default:"scans.decoded" description:"Redis stream with decoded scans"`
	HTTPAddr       string        `long:"http-addr" env:"KIOSK_HTTP_ADDR" default:":8081" description:"Address of the kiosk HTTP API"`
	JaegerEndpoint string        `long:"jaeger-endpoint" env:"JAEGER_ENDPOINT" description:"Jaeger collector endpoint"`
	Debug          bool          `long:"debug" env:"DEBUG" description:"Debug logging"`
}

type BadgeServer struct {
	HTTPAddr       string `long:"http-addr" env:"HTTP_ADDR" default:":8000" description:"Address of the badge HTTP API"`
	AttendeeStore  string `long:"attendee-store" env:"ATTENDEE_STORE" default:"postgres" choice:"postgres" choice:"dynamo" description:"Where attendees are read from"`
	PostgresURL    string `long:"postgres-url" env:"POSTGRES_URL" description:"Postgres connection string"`
	RedisAddr      string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address, enables the check-in read model"`
	TableName      string `long:"table-name" env:"TABLE_NAME" default:"EventUsers" description:"DynamoDB attendee table"`
	TicketGSIName  string `long:"ticket-gsi-name" env:"TICKET_GSI_NAME" default:"TicketIdIndex" description:"DynamoDB index on ticketId"`
	AWSRegion      string `long:"aws-region" env:"AWS_REGION" default:"us-east-1" description:"AWS region of the DynamoDB table"`
	EventTitle     string `long:"event-title" env:"BADGE_EVENT_TITLE" default:"AWS Community Student Day" description:"Title printed on every badge"`
	JaegerEndpoint string `long:"jaeger-endpoint" env:"JAEGER_ENDPOINT" description:"Jaeger collector endpoint"`
	Debug          bool   `long:"debug" env:"DEBUG" description:"Debug logging"`
}

// LoadKiosk parses args on top of the environment. Values already set in the
// environment win over .env.
func LoadKiosk(args []string) (Kiosk, error) {
	var cfg Kiosk
	if err := parse(args, &cfg); err != nil {
		return Kiosk{}, err
	}

	if cfg.Cooldown < 0 || cfg.RequestTimeout < 0 || cfg.AutoDismiss < 0 {
		return Kiosk{}, errors.New("durations must not be negative")
	}

	return cfg, nil
}

func LoadBadgeServer(args []string) (BadgeServer, error) {
	var cfg BadgeServer
	if err := parse(args, &cfg); err != nil {
		return BadgeServer{}, err
	}

	if cfg.AttendeeStore == "postgres" && cfg.PostgresURL == "" {
		return BadgeServer{}, errors.New("POSTGRES_URL is required for the postgres attendee store")
	}
	if cfg.RedisAddr != "" && cfg.PostgresURL == "" {
		return BadgeServer{}, errors.New("POSTGRES_URL is required for the check-in read model")
	}

	return cfg, nil
}

func parse(args []string, cfg any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not load .env: %w", err)
	}

	parser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return err
	}

	return nil
}
