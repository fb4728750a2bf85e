package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"cardtable-service/internal/middleware"
	"cardtable-service/internal/service"
	gameSvc "cardtable-service/internal/service/game"
	"cardtable-service/internal/service/lobby"
	roomSvc "cardtable-service/internal/service/room"
	"cardtable-service/internal/ws"
	appErr "cardtable-service/pkg/errors"
	"cardtable-service/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Game, services.Store)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/cardtable/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/guest/login", handler.GuestLogin)
		}

		v1.GET("/rooms", handler.ListRooms)

		lobbyGroup := v1.Group("/lobby")
		lobbyGroup.Use(middleware.AuthRequired())
		{
			lobbyGroup.POST("/join", handler.LobbyJoin)
			lobbyGroup.POST("/cancel", handler.LobbyCancel)
			lobbyGroup.GET("/status", handler.LobbyStatus)
		}

		sessionGroup := v1.Group("/sessions")
		sessionGroup.Use(middleware.AuthRequired())
		{
			sessionGroup.GET("/:publicId", handler.GetSession)
			sessionGroup.POST("/:publicId/moves", handler.SubmitMove)
			sessionGroup.GET("/:publicId/score", handler.GetScoreBoard)
		}
	}

	adminGroup := r.Group("/admin")
	{
		adminGroup.POST("/auth/login", handler.AdminLogin)

		protected := adminGroup.Group("/")
		protected.Use(middleware.AdminAuthRequired())
		{
			protected.GET("/rooms", handler.AdminListRooms)
			protected.POST("/rooms", handler.AdminCreateRoom)
			protected.PUT("/rooms/:id", handler.AdminUpdateRoom)
		}
	}

	r.GET("/ws/session/:publicId", wsHandler.HandleSessionWS)
}

type guestLoginBody struct {
	Nickname  string `json:"nickname" binding:"required"`
	GuestCode string `json:"guestCode"`
}

type lobbyJoinBody struct {
	RoomID int64 `json:"roomId" binding:"required"`
}

type lobbyCancelBody struct {
	RoomID int64 `json:"roomId" binding:"required"`
}

type adminLoginBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type roomMutationBody struct {
	Name               string `json:"name" binding:"required"`
	Variant            string `json:"variant" binding:"required,oneof=durak bura joker_khishti"`
	SeatCount          int    `json:"seatCount" binding:"required,min=2,max=6"`
	TurnTimeoutSeconds int    `json:"turnTimeoutSeconds" binding:"min=0"`
	Status             string `json:"status" binding:"omitempty,oneof=enabled disabled"`
}

func (b roomMutationBody) toParams() roomSvc.MutationParams {
	status := strings.ToLower(strings.TrimSpace(b.Status))
	if status == "" {
		status = "enabled"
	}
	return roomSvc.MutationParams{
		Name:               strings.TrimSpace(b.Name),
		Variant:            b.Variant,
		SeatCount:          b.SeatCount,
		TurnTimeoutSeconds: b.TurnTimeoutSeconds,
		Status:             status,
	}
}

func (h *Handler) GuestLogin(c *gin.Context) {
	var body guestLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.services.Auth.GuestLogin(c.Request.Context(), body.Nickname, body.GuestCode)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrInvalidNickname):
			status = http.StatusBadRequest
		case errors.Is(err, appErr.ErrUnauthorized):
			status = http.StatusForbidden
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, resp)
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var body adminLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.services.Auth.AdminLogin(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrAdminNotFound), errors.Is(err, appErr.ErrInvalidPassword):
			status = http.StatusUnauthorized
		case errors.Is(err, appErr.ErrAdminDisabled):
			status = http.StatusForbidden
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, resp)
}

func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.services.Room.ListEnabled(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"items": rooms})
}

func (h *Handler) LobbyJoin(c *gin.Context) {
	var body lobbyJoinBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.services.Lobby.JoinQueue(c.Request.Context(), lobby.JoinQueueRequest{
		UserID: userID,
		RoomID: body.RoomID,
	}); err != nil {
		h.handleLobbyError(c, err)
		return
	}

	response.Success(c, gin.H{"status": lobby.QueueStatusQueued})
}

func (h *Handler) LobbyCancel(c *gin.Context) {
	var body lobbyCancelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.services.Lobby.CancelQueue(c.Request.Context(), lobby.CancelQueueRequest{
		UserID: userID,
		RoomID: body.RoomID,
		Reason: "user_cancel",
	}); err != nil {
		h.handleLobbyError(c, err)
		return
	}

	response.SuccessWithMsg(c, gin.H{"status": "cancelled"}, "")
}

func (h *Handler) LobbyStatus(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	roomID, err := strconv.ParseInt(c.Query("roomId"), 10, 64)
	if err != nil || roomID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid roomId")
		return
	}

	result, err := h.services.Lobby.GetStatus(c.Request.Context(), userID, roomID)
	if err != nil {
		h.handleLobbyError(c, err)
		return
	}

	response.Success(c, result)
}

func (h *Handler) GetSession(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	view, err := h.services.Game.GetView(c.Request.Context(), c.Param("publicId"), userID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) SubmitMove(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body gameSvc.MoveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	body.SessionID = c.Param("publicId")
	body.UserID = userID

	view, err := h.services.Game.SubmitMove(c.Request.Context(), body)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) GetScoreBoard(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	board, err := h.services.Game.GetScoreBoard(c.Request.Context(), c.Param("publicId"), userID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.Success(c, board)
}

func (h *Handler) AdminListRooms(c *gin.Context) {
	page, err := parsePositiveIntQuery(c, "page", 1)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	size, err := parsePositiveIntQuery(c, "size", 20)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Room.AdminList(c.Request.Context(), page, size)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, gin.H{
		"items": result.Items,
		"total": result.Total,
		"page":  page,
		"size":  size,
	})
}

func (h *Handler) AdminCreateRoom(c *gin.Context) {
	var body roomMutationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.services.Room.Create(c.Request.Context(), body.toParams())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrUnknownVariant),
			errors.Is(err, appErr.ErrInvalidSeatCount):
			status = http.StatusBadRequest
		case errors.Is(err, gorm.ErrDuplicatedKey):
			status = http.StatusConflict
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, gin.H{"id": room.ID})
}

func (h *Handler) AdminUpdateRoom(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || roomID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid room id")
		return
	}

	var body roomMutationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.services.Room.Update(c.Request.Context(), roomID, body.toParams())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrRoomNotFound):
			status = http.StatusNotFound
		case errors.Is(err, appErr.ErrUnknownVariant),
			errors.Is(err, appErr.ErrInvalidSeatCount):
			status = http.StatusBadRequest
		case errors.Is(err, gorm.ErrDuplicatedKey):
			status = http.StatusConflict
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, room)
}

func (h *Handler) handleLobbyError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, appErr.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, appErr.ErrRoomDisabled), errors.Is(err, appErr.ErrAlreadyInQueue):
		status = http.StatusConflict
	case errors.Is(err, appErr.ErrQueueProcessing):
		status = http.StatusTooManyRequests
	case errors.Is(err, appErr.ErrUnauthorized):
		status = http.StatusUnauthorized
	}
	response.Error(c, status, err.Error())
}

func (h *Handler) handleGameError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, appErr.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, appErr.ErrSeatAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, appErr.ErrNotYourTurn),
		errors.Is(err, appErr.ErrIllegalMove),
		errors.Is(err, appErr.ErrCardNotInHand),
		errors.Is(err, appErr.ErrInvalidBid),
		errors.Is(err, appErr.ErrSessionFinished):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, appErr.ErrStaleVersion):
		status = http.StatusConflict
	case errors.Is(err, appErr.ErrSessionFrozen), errors.Is(err, appErr.ErrInvariantViolation):
		status = http.StatusLocked
	case errors.Is(err, appErr.ErrInvalidCardCode):
		status = http.StatusBadRequest
	}
	response.Error(c, status, err.Error())
}

func parsePositiveIntQuery(c *gin.Context, key string, defaultVal int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return parsed, nil
}

func getUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
