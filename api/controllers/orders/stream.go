package orders

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Syntia28/nikos/api/middleware"
	"github.com/Syntia28/nikos/api/responses"
	ordersvc "github.com/Syntia28/nikos/internal/orders"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/logger"
)

const heartbeatInterval = 25 * time.Second

// Stream serves the live history as Server-Sent Events. Every change to the caller's
// orders re-sends the full filtered list; a slow client only ever sees the latest list.
// Streams end when the client leaves or shutdown is closed.
func Stream(svc ordersvc.Service, shutdown <-chan struct{}, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		filters, err := filtersFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		updates := make(chan []ordersvc.Order, 1)
		unsubscribe, err := svc.Watch(ctx, middleware.UserIDFromContext(ctx), filters, func(list []ordersvc.Order) {
			latest(updates, list)
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		defer unsubscribe()

		rc := http.NewResponseController(w)
		_ = rc.SetWriteDeadline(time.Time{})

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			if logg != nil {
				logg.Error(ctx, "orders.stream.flush_unsupported", err)
			}
			return
		}

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		var seq int
		for {
			select {
			case <-ctx.Done():
				return
			case <-shutdown:
				return
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
			case list := <-updates:
				data, err := json.Marshal(list)
				if err != nil {
					if logg != nil {
						logg.Error(ctx, "orders.stream.encode_failed", err)
					}
					continue
				}
				seq++
				if _, err := fmt.Fprintf(w, "event: orders\nid: %d\ndata: %s\n\n", seq, data); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// latest replaces any undelivered list with list.
func latest(ch chan []ordersvc.Order, list []ordersvc.Order) {
	for {
		select {
		case ch <- list:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
