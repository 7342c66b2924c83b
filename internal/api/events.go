package api

import (
	"context"
	"maps"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/uvcctl/internal/events"
	"github.com/smazurov/uvcctl/internal/metrics/exporters"
)

// eventTypes maps SSE event names to payloads.
func eventTypes() map[string]any {
	types := map[string]any{
		"session-state":     events.SessionStateEvent{},
		"restart-attempt":   events.RestartAttemptEvent{},
		"property-changed":  events.PropertyChangedEvent{},
		"property-probed":   events.PropertyProbedEvent{},
		"device-discovery":  events.DeviceDiscoveryEvent{},
		"snapshot-captured": events.SnapshotCapturedEvent{},
	}
	maps.Copy(types, exporters.EventTypes())
	return types
}

func (s *Server) registerSSERoutes() {
	if s.options.EventBus == nil {
		return
	}
	bus := s.options.EventBus

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Session transitions, restart attempts, property writes and probes, device hotplug and frame statistics",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, eventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		defer bus.PipeStream(eventCh)()

		// New clients start from the current state rather than waiting for
		// the next transition.
		st := s.options.Controller.Status()
		if err := send.Data(events.SessionStateEvent{
			SessionID:       st.ID,
			From:            string(st.State),
			To:              string(st.State),
			DeviceIndex:     st.DeviceIndex,
			ResolutionIndex: st.ResolutionIndex,
			Timestamp:       events.Now(),
		}); err != nil {
			return
		}

		forward(ctx, eventCh, send, nil)
	})
}

// forward sends values from ch until ctx ends or a write fails. A non-nil
// keep filters what is sent.
func forward(ctx context.Context, ch <-chan any, send sse.Sender, keep func(any) bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-ch:
			if keep != nil && !keep(v) {
				continue
			}
			if err := send.Data(v); err != nil {
				return
			}
		}
	}
}
