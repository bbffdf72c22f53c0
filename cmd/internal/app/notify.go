package app

import (
	"context"
	"fmt"

	"warden/cmd/internal/notify"
)

type gatewayCloser interface {
	notify.Gateway
	Close() error
}

type nopCloser struct{ notify.Gateway }

func (nopCloser) Close() error { return nil }

// newGateway builds the notification driver named by cfg.NotifyDriver.
func newGateway(cfg Config, log Logger) (gatewayCloser, error) {
	links := notify.Links{VerifyBaseURL: cfg.VerifyBaseURL, ResetBaseURL: cfg.ResetBaseURL}

	switch cfg.NotifyDriver {
	case "", "log":
		return nopCloser{notify.NewLogGateway(log, links)}, nil
	case "smtp":
		g, err := notify.NewSMTPGateway(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			Timeout:  cfg.SMTPTimeout,
			Links:    links,
		})
		if err != nil {
			return nil, err
		}
		return nopCloser{g}, nil
	case "kafka":
		g, err := notify.NewKafkaGateway(notify.KafkaConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			Username:     cfg.KafkaUsername,
			Password:     cfg.KafkaPassword,
			TLS:          cfg.KafkaTLS,
			WriteTimeout: cfg.KafkaWriteTimeout,
			Links:        links,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("app: unknown notify driver %q", cfg.NotifyDriver)
	}
}

// loggedGateway logs delivery failures with the driver name; the account
// service only sees the error.
type loggedGateway struct {
	gatewayCloser
	driver string
	log    Logger
}

func (g loggedGateway) Send(ctx context.Context, msg notify.Message) error {
	if err := g.gatewayCloser.Send(ctx, msg); err != nil {
		g.log.Error("notify."+g.driver+".send.fail", "kind", string(msg.Kind), "err", err)
		return err
	}
	return nil
}
