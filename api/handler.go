// Package api exposes the room service over HTTP.
// It parses and validates payloads, resolves the caller from the User
// header, and maps domain errors to status codes; all decisions about
// presence and visibility live below it.
package api

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"batepapo/domain"
	"batepapo/errors"
	"batepapo/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Handler struct {
	log          *slog.Logger
	rooms        services.IRoomService
	defaultLimit int
}

func NewHandler(log *slog.Logger, rooms services.IRoomService, defaultLimit int) *Handler {
	return &Handler{log: log, rooms: rooms, defaultLimit: defaultLimit}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	router.POST("/users", h.join)
	router.GET("/users", h.listUsers)
	router.POST("/messages", h.postMessage)
	router.GET("/messages", h.listMessages)
	router.POST("/status", h.heartbeat)
}

type joinRequest struct {
	Name string `json:"name" validate:"required"`
}

type postMessageRequest struct {
	To   string `json:"to" validate:"required"`
	Text string `json:"text" validate:"required"`
	Type string `json:"type" validate:"required,oneof=message private_message"`
}

type userResponse struct {
	Name     string `json:"name"`
	LastSeen string `json:"lastSeen"`
}

type messageResponse struct {
	Seq  uint64 `json:"seq"`
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
	Time string `json:"time"`
}

func (h *Handler) join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	user, err := h.rooms.Join(c.Request.Context(), req.Name)
	if stderrors.Is(err, errors.ErrStatusFeedLost) {
		// The user is in the room; only the announcement was lost.
		h.log.Warn("Join recorded without status message", "name", req.Name, "err", err)
		err = nil
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(user))
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.rooms.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]userResponse, len(users))
	for i, user := range users {
		resp[i] = toUserResponse(user)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) postMessage(c *gin.Context) {
	sender, ok := h.caller(c)
	if !ok {
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	message, err := h.rooms.PostMessage(c.Request.Context(), sender, req.To, req.Text, domain.MessageType(req.Type))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(message))
}

func (h *Handler) listMessages(c *gin.Context) {
	viewer, ok := h.caller(c)
	if !ok {
		return
	}

	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errors.ErrInvalidLimit.Error()})
			return
		}
		limit = parsed
	}

	messages, err := h.rooms.ListMessages(c.Request.Context(), viewer, limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]messageResponse, len(messages))
	for i, message := range messages {
		resp[i] = toMessageResponse(message)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) heartbeat(c *gin.Context) {
	name, ok := h.caller(c)
	if !ok {
		return
	}

	if err := h.rooms.Heartbeat(c.Request.Context(), name); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// caller resolves the unauthenticated identity from the User header.
func (h *Handler) caller(c *gin.Context) (string, bool) {
	name := c.GetHeader("User")
	if name == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "missing User header"})
		return "", false
	}
	return name, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case stderrors.Is(err, errors.ErrNameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case stderrors.Is(err, errors.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case stderrors.Is(err, errors.ErrEmptyField),
		stderrors.Is(err, errors.ErrInvalidType),
		stderrors.Is(err, errors.ErrReservedType),
		stderrors.Is(err, errors.ErrInvalidLimit):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.log.Error("Request failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, User")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		Name:     user.Name,
		LastSeen: user.LastSeen.UTC().Format(time.RFC3339Nano),
	}
}

func toMessageResponse(message domain.Message) messageResponse {
	return messageResponse{
		Seq:  message.Seq,
		From: message.From,
		To:   message.To,
		Text: message.Text,
		Type: string(message.Type),
		Time: message.Time.UTC().Format("15:04:05"),
	}
}
