package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mssola/useragent"

	"shortly/internal/entities"
)

// ClickRecorder counts a redirect hit and hands its event to background persistence
type ClickRecorder struct {
	counter ClickCounter
	sink    ClickSink
	logger  *slog.Logger
	now     func() time.Time
}

// NewClickRecorder creates a new click recorder
func NewClickRecorder(counter ClickCounter, sink ClickSink, logger *slog.Logger) *ClickRecorder {
	return &ClickRecorder{
		counter: counter,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// Record awaits the atomic counter increment and returns the new count.
// The click event is queued without waiting; a full queue drops it.
func (r *ClickRecorder) Record(ctx context.Context, url *entities.URLSnapshot, meta entities.ClickMeta) (int64, error) {
	const op = "service.ClickRecorder.Record"

	clicks, err := r.counter.IncrementClicks(ctx, url.ID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	event := &entities.ClickEvent{
		URLID:     url.ID,
		ClickedAt: r.now().UTC(),
		UserID:    meta.UserID,
		Browser:   meta.Browser,
		Platform:  meta.Platform,
	}
	if !r.sink.Enqueue(event) {
		r.logger.Warn("click queue full, dropping event",
			slog.Int64("url_id", url.ID),
			slog.String("short_code", url.ShortCode),
		)
	}

	return clicks, nil
}

// ParseClickMeta extracts browser and platform families from a User-Agent header
func ParseClickMeta(userAgent string, userID *string) entities.ClickMeta {
	meta := entities.ClickMeta{UserID: userID}
	if userAgent == "" {
		return meta
	}

	ua := useragent.New(userAgent)
	if ua.Bot() {
		bot := "Bot"
		meta.Browser = &bot
	} else if name, _ := ua.Browser(); name != "" {
		meta.Browser = &name
	}

	if osName := ua.OSInfo().Name; osName != "" {
		meta.Platform = &osName
	} else if platform := ua.Platform(); platform != "" {
		meta.Platform = &platform
	}

	return meta
}
