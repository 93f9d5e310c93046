package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rxera/rxledger-backend/api/responses"
	"github.com/rxera/rxledger-backend/internal/notifier"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
	"github.com/rxera/rxledger-backend/pkg/logger"
)

const eventsHeartbeatInterval = 25 * time.Second

// StreamEvents pushes committed changes to the client over server-sent
// events. Each subscriber sees events in publish order.
func StreamEvents(broker *notifier.Broker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if broker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event broker unavailable"))
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		events, cancel := broker.Subscribe()
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		heartbeat := time.NewTicker(eventsHeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()
			case evt, open := <-events:
				if !open {
					return
				}
				payload, err := json.Marshal(evt)
				if err != nil {
					if logg != nil {
						logg.Error(r.Context(), "marshal event", err)
					}
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload)
				flusher.Flush()
			}
		}
	}
}
