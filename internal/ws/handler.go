package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cardtable-service/internal/engine"
	"cardtable-service/internal/service/game"
	"cardtable-service/internal/store"
	pkgAuth "cardtable-service/pkg/auth"
	appErr "cardtable-service/pkg/errors"
	"cardtable-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	gameSvc *game.Service
	store   store.SessionStore
}

func NewHandler(gameSvc *game.Service, st store.SessionStore) *Handler {
	return &Handler{gameSvc: gameSvc, store: st}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// OutgoingMessage is every frame the server sends: "state" carries a
// redacted session view, "error" a failure description.
type OutgoingMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type incomingMove struct {
	Type engine.ActionType `json:"type"`
	Card string            `json:"card"`
	Bid  *int              `json:"bid"`
}

func (h *Handler) HandleSessionWS(c *gin.Context) {
	publicID := strings.TrimSpace(c.Param("publicId"))
	if publicID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	token, err := getTokenFromRequest(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	claims, err := pkgAuth.ParseUserToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	userID := claims.SubjectID

	// Seat check before the upgrade so rejections stay plain HTTP.
	view, err := h.gameSvc.GetView(c.Request.Context(), publicID, userID)
	if err != nil {
		switch {
		case errors.Is(err, appErr.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, appErr.ErrSeatAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "seat access denied"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		}
		return
	}

	ctx, cancelCtx := context.WithCancel(context.Background())
	ticks, cancelSub, err := h.store.Subscribe(ctx, publicID)
	if err != nil {
		cancelCtx()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "change feed unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cancelSub()
		cancelCtx()
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	logger.Log.Info("New WebSocket connection",
		zap.String("sessionID", publicID),
		zap.Int64("userID", userID),
	)
	if err := h.gameSvc.SetConnected(ctx, publicID, userID, true); err != nil {
		logger.Log.Warn("presence update failed",
			zap.String("sessionID", publicID),
			zap.Int64("userID", userID),
			zap.Error(err),
		)
	}

	client := newClient(ctx, conn, userID, publicID, h.gameSvc, ticks, func() {
		cancelSub()
		cancelCtx()
	})
	client.run(view)
}

func getTokenFromRequest(c *gin.Context) (string, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token != "" {
		return token, nil
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
			if token != "" {
				return token, nil
			}
		}
	}
	return "", errors.New("missing token")
}

type client struct {
	ctx       context.Context
	conn      *websocket.Conn
	userID    int64
	publicID  string
	gameSvc   *game.Service
	ticks     <-chan struct{}
	cancel    func()
	outbound  chan OutgoingMessage
	done      chan struct{}
	pingEvery time.Duration
}

func newClient(ctx context.Context, conn *websocket.Conn, userID int64, publicID string, gameSvc *game.Service, ticks <-chan struct{}, cancel func()) *client {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	return &client{
		ctx:       ctx,
		conn:      conn,
		userID:    userID,
		publicID:  publicID,
		gameSvc:   gameSvc,
		ticks:     ticks,
		cancel:    cancel,
		outbound:  make(chan OutgoingMessage, 16),
		done:      make(chan struct{}),
		pingEvery: 25 * time.Second,
	}
}

func (c *client) run(initial engine.SessionView) {
	c.outbound <- OutgoingMessage{Type: "state", Data: initial}
	go c.writePump()
	c.readPump()
}

func (c *client) readPump() {
	defer func() {
		close(c.done)
		// The pump context dies with the socket; presence gets its own.
		dcCtx, dcCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.gameSvc.SetConnected(dcCtx, c.publicID, c.userID, false); err != nil {
			logger.Log.Warn("presence update failed",
				zap.String("sessionID", c.publicID),
				zap.Int64("userID", c.userID),
				zap.Error(err),
			)
		}
		dcCancel()
		c.cancel()
		c.conn.Close()
	}()

	for {
		mt, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Log.Info("WS read error", zap.Error(err), zap.Int64("userID", c.userID), zap.String("sessionID", c.publicID))
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var incoming struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.enqueue(OutgoingMessage{Type: "error", Data: gin.H{"message": "invalid payload"}})
			continue
		}

		switch incoming.Type {
		case "move":
			c.handleMove(incoming.Data)
		case "state":
			c.pushCurrentState()
		case "":
			// ignore
		default:
			c.enqueue(OutgoingMessage{Type: "error", Data: gin.H{"message": fmt.Sprintf("unknown frame type %q", incoming.Type)}})
		}
	}
}

func (c *client) handleMove(raw json.RawMessage) {
	var mv incomingMove
	if err := json.Unmarshal(raw, &mv); err != nil {
		c.enqueue(OutgoingMessage{Type: "error", Data: gin.H{"message": "invalid move payload"}})
		return
	}
	// The commit publishes to the change feed, so every connected
	// seat (this one included) receives the new state through ticks.
	_, err := c.gameSvc.SubmitMove(c.ctx, game.MoveRequest{
		SessionID: c.publicID,
		UserID:    c.userID,
		Type:      mv.Type,
		Card:      mv.Card,
		Bid:       mv.Bid,
	})
	if err != nil {
		c.enqueue(OutgoingMessage{Type: "error", Data: gin.H{"message": fmt.Sprintf("move failed: %v", err)}})
	}
}

func (c *client) pushCurrentState() {
	view, err := c.gameSvc.GetView(c.ctx, c.publicID, c.userID)
	if err != nil {
		c.enqueue(OutgoingMessage{Type: "error", Data: gin.H{"message": fmt.Sprintf("state load failed: %v", err)}})
		return
	}
	c.enqueue(OutgoingMessage{Type: "state", Data: view})
}

func (c *client) enqueue(msg OutgoingMessage) {
	select {
	case c.outbound <- msg:
	case <-c.done:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outbound:
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Log.Info("WS write error", zap.Error(err), zap.Int64("userID", c.userID), zap.String("sessionID", c.publicID))
				return
			}
		case _, ok := <-c.ticks:
			if !ok {
				return
			}
			view, err := c.gameSvc.GetView(c.ctx, c.publicID, c.userID)
			if err != nil {
				logger.Log.Warn("state refresh failed", zap.Error(err), zap.String("sessionID", c.publicID))
				continue
			}
			if err := c.conn.WriteJSON(OutgoingMessage{Type: "state", Data: view}); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
