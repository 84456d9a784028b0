// Package httpapi is the REST read and account surface: register,
// login, presence and history. Realtime traffic stays on the
// websocket side.
package httpapi

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/services"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type Server struct {
	log  *slog.Logger
	chat services.IChatService
	auth services.IAuthService
}

func NewServer(log *slog.Logger, chat services.IChatService, auth services.IAuthService) *Server {
	return &Server{log: log, chat: chat, auth: auth}
}

func (s *Server) Register(r gin.IRouter) {
	api := r.Group("/api")

	api.POST("/users/register", s.handleRegister)
	api.POST("/users/login", s.handleLogin)
	api.GET("/users/online", s.handleOnline)

	authed := api.Group("", s.requireAuth)
	authed.GET("/messages", s.handleRecentMessages)
	authed.POST("/messages", s.handleSendMessage)
	authed.GET("/private-chats", s.handleSessions)
	authed.GET("/private-chats/:targetUserId", s.handlePrivateHistory)
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var body credentialsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	token, err := s.auth.Register(body.Username, body.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tokenResponse{Token: string(token)})
}

func (s *Server) handleLogin(c *gin.Context) {
	var body credentialsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	token, err := s.auth.Login(body.Username, body.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: string(token)})
}

func (s *Server) handleOnline(c *gin.Context) {
	users, count := s.chat.OnlineUsers()
	c.JSON(http.StatusOK, gin.H{"users": users, "count": count})
}

func (s *Server) handleRecentMessages(c *gin.Context) {
	messages, err := s.chat.RecentHistory(limitParam(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var body sendMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	msg, err := s.chat.SendPublic(c.Request.Context(), identityFrom(c), body.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions, err := s.chat.Sessions(identityFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handlePrivateHistory(c *gin.Context) {
	messages, err := s.chat.PrivateHistory(identityFrom(c).UserID, c.Param("targetUserId"), limitParam(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

const identityKey = "identity"

// requireAuth checks the Bearer credential and stores the resolved
// identity in the request context for the handlers.
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	credential, found := strings.CutPrefix(header, "Bearer ")
	if !found || credential == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	identity, err := s.auth.Verify(credential)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	c.Set(identityKey, identity)
	c.Next()
}

func identityFrom(c *gin.Context) domain.Identity {
	identity, _ := c.Get(identityKey)
	return identity.(domain.Identity)
}

func limitParam(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func (s *Server) fail(c *gin.Context, err error) {
	status := errors.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": errors.Kind(err)})
}
