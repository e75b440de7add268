package echoapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/services/realtime"
)

const writeWait = 10 * time.Second

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	streamTables = map[string]bool{
		core.TableExamSessions:    true,
		core.TableExamAllocations: true,
		core.TableExamAttendance:  true,
		core.TableExamSeating:     true,
	}
)

type realtimeAPI struct {
	hub    *realtime.Hub
	logger core.Logger
}

func registerRealtimeAPI(g *echo.Group, hub *realtime.Hub, logger core.Logger) {
	api := realtimeAPI{hub: hub, logger: logger}

	g.GET("/changes", api.stream)
}

// stream pushes the change events matching `?table=...&session_id=...` to a websocket client.
func (api *realtimeAPI) stream(ctx echo.Context) error {
	tables := ctx.QueryParams()["table"]
	for _, t := range tables {
		if !streamTables[t] {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown table: "+t)
		}
	}
	filter := realtime.Filter{Tables: tables, SessionID: ctx.QueryParam("session_id")}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return nil // the upgrader already replied
	}
	defer conn.Close()

	sub := api.hub.Subscribe(filter)
	defer sub.Close()

	// clients only listen; reading detects when they go away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return nil
		case evt, ok := <-sub.Events():
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				api.logger.Warn("realtime: write failed", err)
				return nil
			}
		}
	}
}
