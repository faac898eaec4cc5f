package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"

	"auth-api/internal/domain"
	"auth-api/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth   service.AuthService
	store  Pinger
	logger *logrus.Logger
}

func NewHandler(auth service.AuthService, store Pinger, logger *logrus.Logger) *Handler {
	registerValidators()
	return &Handler{
		auth:   auth,
		store:  store,
		logger: logger,
	}
}

// NewRouter builds a gin engine with the middleware stack and all routes installed.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestIDMiddleware(), requestLogger(h.logger))
	h.RegisterRoutes(router)
	return router
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.POST("/token", h.token)
	}
	router.GET("/health", h.health)
}

type registerRequest struct {
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required,min=8,max=128"`
	FirstName string `json:"first_name" binding:"required,notblank,max=100"`
	LastName  string `json:"last_name" binding:"required,notblank,max=100"`
}

// Login passwords are only bounded above: a shorter one can never match a
// registered account and is reported as invalid credentials.
type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,max=128"`
}

type tokenRequest struct {
	GrantType string `form:"grant_type" binding:"omitempty,eq=password"`
	Username  string `form:"username" binding:"required"`
	Password  string `form:"password" binding:"required,max=128"`
}

type UserResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rejectInput(c, err)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, userToResponse(user))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rejectInput(c, err)
		return
	}
	h.issueToken(c, req.Email, req.Password)
}

// token is the OAuth2 password grant variant of login; username carries the email.
func (h *Handler) token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindWith(&req, binding.Form); err != nil {
		h.rejectInput(c, err)
		return
	}
	h.issueToken(c, req.Username, req.Password)
}

func (h *Handler) issueToken(c *gin.Context, email, password string) {
	tok, err := h.auth.Login(c.Request.Context(), email, password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
	})
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logError(h.logger, c, "health check failed", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) rejectInput(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": validationDetails(err)})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "email already registered"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid credentials"})
	default:
		logError(h.logger, c, "auth request failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
	}
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}
