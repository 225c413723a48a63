package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Kilat-Mobility/service-journey/internal/application"
	"github.com/Kilat-Mobility/service-journey/internal/common/auth"
	"github.com/Kilat-Mobility/service-journey/internal/common/middleware"
	"github.com/Kilat-Mobility/service-journey/internal/common/response"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// StreamHandler pushes live position snapshots over a websocket.
type StreamHandler struct {
	service  *application.PositionService
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewStreamHandler creates a StreamHandler that observes the journey every interval.
func NewStreamHandler(service *application.PositionService, interval time.Duration, logger *zap.Logger) *StreamHandler {
	if interval <= 0 {
		interval = time.Second
	}
	return &StreamHandler{
		service:  service,
		interval: interval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// RegisterRoutes registers the stream route. The token may be passed as the
// access_token query parameter.
func (h *StreamHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	stream := r.Group("/api/v1/journeys")
	stream.Use(middleware.AuthMiddleware(jwtManager))
	stream.GET("/:id/stream", h.Stream)
}

// Stream handles GET /api/v1/journeys/:id/stream. It sends one snapshot per interval
// and closes the socket after the journey reaches a terminal status.
func (h *StreamHandler) Stream(c *gin.Context) {
	journeyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid journey ID")
		return
	}

	// Fail before upgrading so unknown journeys get a normal HTTP error.
	if _, err := h.service.GetJourney(c.Request.Context(), journeyID); err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go h.readPump(conn, cancel)

	h.writePump(ctx, conn, journeyID)
}

// readPump drains client frames so pongs and close frames are processed.
func (h *StreamHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) writePump(ctx context.Context, conn *websocket.Conn, journeyID uuid.UUID) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	send := func() bool {
		snap, err := h.service.GetPosition(ctx, journeyID)
		if err != nil {
			h.logger.Warn("position stream observation failed",
				zap.String("journey_id", journeyID.String()),
				zap.Error(err),
			)
			return ctx.Err() == nil
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(snap); err != nil {
			return false
		}
		if snap.Status.IsTerminal() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(snap.Status)),
				time.Now().Add(writeWait))
			return false
		}
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
