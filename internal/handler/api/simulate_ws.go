package api

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"QuantLab/internal/domain/models"
	xhttp "QuantLab/pkg/http"
	xlogger "QuantLab/pkg/logger"
)

const (
	wsWriteWait = 10 * time.Second
	wsReadWait  = 30 * time.Second
)

// streamMessage is one frame on /ws/simulate.
type streamMessage struct {
	Type      string                  `json:"type"`
	Completed int                     `json:"completed,omitempty"`
	Total     int                     `json:"total,omitempty"`
	Data      any                     `json:"data,omitempty"`
	Error     *xhttp.AppError         `json:"error,omitempty"`
	Errors    []xhttp.ValidationError `json:"errors,omitempty"`
}

// SimulateStream reads one SimulateRequest and streams path progress, then the report.
func (h *AnalysisHandler) SimulateStream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx, cancel := h.requestContext(c)
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		h.logger.Warn("websocket read failed", xlogger.Error(err))
		return nil
	}

	req := &models.SimulateRequest{}
	if err := json.Unmarshal(raw, req); err != nil {
		h.writeFrame(conn, streamMessage{Type: "error", Error: xhttp.BadRequestError("malformed request: " + err.Error())})
		return nil
	}
	if verr := xhttp.ValidateStruct(ctx, req); verr != nil {
		msg := streamMessage{Type: "error", Error: xhttp.BadRequestError(xhttp.ValidationMessage(verr))}
		if errs, ok := verr.([]xhttp.ValidationError); ok {
			msg.Errors = errs
		}
		h.writeFrame(conn, msg)
		return nil
	}

	// A client that goes away cancels the run.
	_ = conn.SetReadDeadline(time.Time{})
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	// Progress callbacks are serialized by the simulator, so they never race each other;
	// the final frame is written after Simulate returns.
	res, err := h.sim.Simulate(ctx, *req, func(completed, total int) {
		if !h.writeFrame(conn, streamMessage{Type: "progress", Completed: completed, Total: total}) {
			cancel()
		}
	})
	if err != nil {
		h.writeFrame(conn, streamMessage{Type: "error", Error: toAppError(err)})
		return nil
	}
	h.writeFrame(conn, streamMessage{Type: "result", Data: res})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(wsWriteWait))
	return nil
}

func (h *AnalysisHandler) writeFrame(conn *websocket.Conn, msg streamMessage) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("websocket write failed", xlogger.String("type", msg.Type), xlogger.Error(err))
		return false
	}
	return true
}
