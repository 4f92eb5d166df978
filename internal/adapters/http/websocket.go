package http

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/core/usecases"
	"github.com/samirrijal/kopimap/internal/pkg/metrics"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4096
	wsSendBuffer     = 32
)

// wsRequest is a client action.
//
//	{"action":"search","query":"kopi"}
//	{"action":"route","from":{"lat":-7.3,"lon":112.75},"to":{"lat":-7.26,"lon":112.74}}
//	{"action":"cancel_route"}
//	{"action":"ping"}
type wsRequest struct {
	Action string           `json:"action"`
	Query  string           `json:"query,omitempty"`
	From   *domain.GeoPoint `json:"from,omitempty"`
	To     *domain.GeoPoint `json:"to,omitempty"`
}

// wsEvent is pushed to the client.
type wsEvent struct {
	Type    string `json:"type"`
	Seq     uint64 `json:"seq,omitempty"`
	Query   string `json:"query,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Event types.
const (
	wsVisits         = "visits"
	wsSearchResults  = "search_results"
	wsSearchError    = "search_error"
	wsRoute          = "route"
	wsNoRoute        = "no_route"
	wsRouteCleared   = "route_cleared"
	wsCatalogChanged = "catalog_changed"
	wsError          = "error"
	wsPong           = "pong"
)

// WebSocketHandler serves one map session: live visit counters from the
// moment of connection, catalog change notices, sequenced type-ahead search
// and a tracked route.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s := &wsSession{
			conn:   conn,
			send:   make(chan wsEvent, wsSendBuffer),
			routes: usecases.NewRouteTracker(deps.Routes),
			log:    slog.Default().With("remote", conn.RemoteAddr().String()),
		}
		s.search = usecases.NewSearchSession(ctx, deps.SearchDebounce,
			func(ctx context.Context, q string) ([]domain.Cafe, error) {
				return deps.Cafes.List(ctx, usecases.CafeQuery{Text: q})
			},
			s.deliverSearch,
		)
		defer s.search.Close()

		unsubVisits := deps.Visits.Subscribe(func(stats domain.VisitStats) {
			s.push(wsEvent{Type: wsVisits, Data: stats})
		})
		defer unsubVisits()
		if deps.Catalog != nil {
			unsubCatalog := deps.Catalog.Subscribe(func(reason string) {
				s.push(wsEvent{Type: wsCatalogChanged, Reason: reason})
			})
			defer unsubCatalog()
		}

		if stats, err := deps.Visits.Snapshot(ctx); err == nil {
			s.push(wsEvent{Type: wsVisits, Data: stats})
		}

		s.log.Debug("ws client connected")
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.writePump(ctx)
		}()

		s.readLoop(ctx)
		cancel()
		s.routes.Cancel()
		<-done
		s.log.Debug("ws client disconnected")
	}
}

type wsSession struct {
	conn   *websocket.Conn
	send   chan wsEvent
	search *usecases.SearchSession[[]domain.Cafe]
	routes *usecases.RouteTracker
	log    *slog.Logger
}

// push queues ev without blocking. A client that cannot keep up loses
// events rather than stalling the broadcaster.
func (s *wsSession) push(ev wsEvent) {
	select {
	case s.send <- ev:
	default:
		s.log.Warn("ws send buffer full, dropping event", "type", ev.Type)
	}
}

func (s *wsSession) deliverSearch(res usecases.SearchResult[[]domain.Cafe]) {
	if res.Err != nil {
		if errors.Is(res.Err, context.Canceled) {
			return
		}
		s.push(wsEvent{Type: wsSearchError, Seq: res.Seq, Query: res.Query, Message: res.Err.Error()})
		return
	}
	s.push(wsEvent{Type: wsSearchResults, Seq: res.Seq, Query: res.Query, Data: nonNil(res.Value)})
}

func (s *wsSession) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(wsMaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.push(wsEvent{Type: wsError, Message: "invalid JSON"})
			continue
		}

		switch req.Action {
		case "search":
			s.search.Submit(req.Query)
		case "route":
			if req.From == nil || req.To == nil {
				s.push(wsEvent{Type: wsError, Message: "route needs from and to"})
				continue
			}
			go s.requestRoute(ctx, *req.From, *req.To)
		case "cancel_route":
			s.routes.Cancel()
			s.push(wsEvent{Type: wsRouteCleared})
		case "ping":
			s.push(wsEvent{Type: wsPong})
		default:
			s.push(wsEvent{Type: wsError, Message: "unknown action: " + req.Action})
		}
	}
}

func (s *wsSession) requestRoute(ctx context.Context, from, to domain.GeoPoint) {
	route, err := s.routes.Request(ctx, from, to)
	switch {
	case err == nil:
		s.push(wsEvent{Type: wsRoute, Data: route})
	case errors.Is(err, context.Canceled):
		// Superseded or cancelled; the newer request reports.
	case errors.Is(err, domain.ErrValidation):
		s.push(wsEvent{Type: wsError, Message: err.Error()})
	default:
		s.push(wsEvent{Type: wsNoRoute, Message: err.Error()})
	}
}

func (s *wsSession) writePump(ctx context.Context) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case ev := <-s.send:
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("ws encode failed", "type", ev.Type, "error", err)
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
