package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopfront/storefront/api/responses"
	"github.com/shopfront/storefront/internal/events"
	pkgerrors "github.com/shopfront/storefront/pkg/errors"
	"github.com/shopfront/storefront/pkg/logger"
)

const streamBuffer = 32

var errSlowConsumer = errors.New("event stream buffer full")

// EventSource is where the stream subscribes for notifications.
type EventSource interface {
	Subscribe(fn events.Handler) func()
}

// EventsStream relays notifications as Server-Sent Events until the client
// disconnects. Events are dropped for a client whose buffer is full.
func EventsStream(src EventSource, logg *logger.Logger, heartbeat time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if src == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event stream unavailable"))
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		queue := make(chan events.Event, streamBuffer)
		unsubscribe := src.Subscribe(func(_ context.Context, e events.Event) error {
			select {
			case queue <- e:
				return nil
			default:
				return errSlowConsumer
			}
		})
		defer unsubscribe()

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		var tick <-chan time.Time
		if heartbeat > 0 {
			ticker := time.NewTicker(heartbeat)
			defer ticker.Stop()
			tick = ticker.C
		}

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case e := <-queue:
				if err := writeEvent(w, e); err != nil {
					if logg != nil {
						logg.WarnErr(ctx, "event stream write failed", err)
					}
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
	return err
}
