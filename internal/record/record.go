// Package record persists interaction records without ever failing the
// request path.
package record

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/httpsim/internal/server"
	"github.com/tjfontaine/httpsim/internal/simulator"
	"github.com/tjfontaine/httpsim/internal/storage"
)

// Cycle describes one finished request cycle for recording.
type Cycle struct {
	Method         string
	Path           string
	SC             *simulator.Context
	Status         int
	Forwarded      bool
	ShortCircuited bool
	Started        time.Time
}

// Record stores the cycle in the interaction store. It logs and returns
// on failure; persistence problems never surface to the client.
func Record(ctx context.Context, store storage.InteractionStore, c Cycle) {
	if store == nil {
		return
	}

	logger := slog.Default()

	// Decouple persistence from the request lifecycle so a disconnecting
	// client does not drop the record; still bound it with a timeout.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	id := server.GetRequestID(ctx)
	if id == "" {
		id = uuid.New().String()
	}

	in := &storage.Interaction{
		ID:             "int_" + id,
		Method:         c.Method,
		Path:           c.Path,
		Status:         c.Status,
		Forwarded:      c.Forwarded,
		ShortCircuited: c.ShortCircuited,
		CreatedAt:      time.Now(),
	}
	if !c.Started.IsZero() {
		in.Duration = time.Since(c.Started)
	}
	if c.SC != nil {
		in.ContentType = c.SC.ContentType
		if c.SC.Response != nil {
			in.MatchedFixture = c.SC.Response.MatchingRequest
		}
		if len(c.SC.Failures) > 0 {
			if encoded, err := json.Marshal(c.SC.Failures); err == nil {
				in.HookFailures = string(encoded)
			}
		}
	}
	if err := store.SaveInteraction(persistCtx, in); err != nil {
		logger.Error("failed to record interaction",
			slog.String("id", in.ID),
			slog.String("path", in.Path),
			slog.String("error", err.Error()))
	}
}
