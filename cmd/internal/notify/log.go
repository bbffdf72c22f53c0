package notify

import (
	"context"
	"log/slog"
)

// LogGateway writes messages to the log instead of delivering them.
// Development only: the logged link carries the token.
type LogGateway struct {
	log   *slog.Logger
	links Links
}

// NewLogGateway returns a LogGateway. A nil logger uses slog.Default().
func NewLogGateway(log *slog.Logger, links Links) *LogGateway {
	if log == nil {
		log = slog.Default()
	}
	return &LogGateway{log: log, links: links}
}

func (g *LogGateway) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	g.log.InfoContext(ctx, "notify.log.send",
		"kind", string(msg.Kind),
		"to", msg.Address,
		"link", g.links.For(msg),
		"expires_at", msg.ExpiresAt,
	)
	return nil
}
