package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ShareLinkPurger is the slice of the share-link repository the worker
// needs.
type ShareLinkPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type Processor struct {
	links  ShareLinkPurger
	logger zerolog.Logger
}

type TaskPayload struct {
	Type         string `json:"type"`
	ScreenshotID string `json:"screenshotId"`
}

func NewProcessor(links ShareLinkPurger, logger zerolog.Logger) *Processor {
	return &Processor{
		links:  links,
		logger: logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case "purge_expired_links":
		return p.handleLinkPurge(ctx)
	default:
		p.logger.Warn().Str("type", payload.Type).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *Processor) handleLinkPurge(ctx context.Context) error {
	removed, err := p.links.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge expired links: %w", err)
	}
	if removed > 0 {
		p.logger.Info().Int64("removed", removed).Msg("expired share links purged")
	}
	return nil
}
