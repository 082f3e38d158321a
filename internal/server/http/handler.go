// Package http serves the account and renewal services over JSON/HTTP
// with gin. Every response uses the {success, message, data} envelope.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/logging"
	"github.com/dmitrijs2005/bookauth/internal/server/auth"
	"github.com/dmitrijs2005/bookauth/internal/server/models"
	"github.com/dmitrijs2005/bookauth/internal/server/services"
	"github.com/gin-gonic/gin"
)

// Accounts is the subset of services.AccountService the handlers use.
type Accounts interface {
	SignUp(ctx context.Context, in services.SignUpInput) (models.User, error)
	SignIn(ctx context.Context, email, password string) (*models.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeAll(ctx context.Context, accessToken string) (int64, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

type Renewer interface {
	Renew(ctx context.Context, accessToken, refreshToken string) services.RenewalResult
}

// Response is the envelope of every API reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type TokenData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type signUpRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type renewRequest struct {
	AccessToken  string `json:"accessToken" binding:"required"`
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type revokeRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Handler holds the route handlers.
type Handler struct {
	accounts Accounts
	renewal  Renewer
	log      logging.Logger
}

func NewHandler(accounts Accounts, renewal Renewer, log logging.Logger) *Handler {
	return &Handler{accounts: accounts, renewal: renewal, log: log.With("module", "http")}
}

func fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{Success: false, Message: message})
}

// failErr maps errors without a route-specific meaning.
func (h *Handler) failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		fail(c, http.StatusServiceUnavailable, services.FailureUnavailable.Reason())
	default:
		h.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		fail(c, http.StatusInternalServerError, services.FailureInternal.Reason())
	}
}

func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	_, err := h.accounts.SignUp(c.Request.Context(), services.SignUpInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorValidation):
			fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, common.ErrAlreadyExists):
			fail(c, http.StatusConflict, "email already registered")
		default:
			h.failErr(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Message: "user registered successfully"})
}

func (h *Handler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	pair, err := h.accounts.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			fail(c, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.failErr(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Sign In Success",
		Data:    TokenData{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
	})
}

// renewStatus is the HTTP status for each refused renewal.
func renewStatus(f services.RenewalFailure) int {
	switch f {
	case services.FailureUnavailable:
		return http.StatusServiceUnavailable
	case services.FailureInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}

func (h *Handler) RenewToken(c *gin.Context) {
	var req renewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.renewal.Renew(c.Request.Context(), req.AccessToken, req.RefreshToken)
	if !result.OK() {
		if result.Failure.Retryable() {
			c.Header("Retry-After", "1")
		}
		fail(c, renewStatus(result.Failure), result.Reason())
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: result.Reason(),
		Data:    TokenData{AccessToken: result.Pair.AccessToken, RefreshToken: result.Pair.RefreshToken},
	})
}

func (h *Handler) Revoke(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accounts.Revoke(c.Request.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			fail(c, http.StatusNotFound, services.FailureNotFound.Reason())
			return
		}
		h.failErr(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Message: "refresh token revoked"})
}

func (h *Handler) RevokeAll(c *gin.Context) {
	token, _ := bearerToken(c)

	n, err := h.accounts.RevokeAll(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrTokenExpired) {
			fail(c, http.StatusUnauthorized, err.Error())
			return
		}
		h.failErr(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Message: "all refresh tokens revoked", Data: gin.H{"revoked": n}})
}

func (h *Handler) Me(c *gin.Context) {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		fail(c, http.StatusInternalServerError, services.FailureInternal.Reason())
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"email": claims.Email, "roles": claims.Roles}})
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Message: "OK"})
}
