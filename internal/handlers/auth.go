package handlers

import (
	"errors"
	"net/http"

	"ato_controller/internal/service"

	"github.com/gin-gonic/gin"
)

// Operator credentials for both sign-up and sign-in.
type authCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type passwordChange struct {
	Current string `json:"current_password" binding:"required"`
	New     string `json:"new_password" binding:"required"`
}

// bindJSONOrBadRequest binds the body into dst, answering 400 itself on failure.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("bad_request_body", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// @Summary      Sign-up availability
// @Description  Reports whether a new operator account can be created. Only the first operator may sign up unless open sign-up is configured.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]bool  "sign_up_open"
// @Failure      500  {object}  map[string]string
// @Router       /auth/setup [get]
func (h *Handler) authSetup(c *gin.Context) {
	open, err := h.services.SignUpOpen()
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to read operator accounts", "auth_setup_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sign_up_open": open})
}

// @Summary      Create operator
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      authCredentials  true  "credentials"
// @Success      200   {object}  map[string]int
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /auth/sign-up [post]
func (h *Handler) signUp(c *gin.Context) {
	var input authCredentials
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	id, err := h.services.SignUp(input.Username, input.Password)
	if err != nil {
		if h.log != nil {
			h.log.Infow("auth_sign_up_failed", "username", input.Username, "err", err)
		}
		code := http.StatusBadRequest
		if errors.Is(err, service.ErrSignUpClosed) {
			code = http.StatusForbidden
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      authCredentials  true  "credentials"
// @Success      200   {object}  map[string]string  "token"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/sign-in [post]
func (h *Handler) signIn(c *gin.Context) {
	var input authCredentials
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	token, err := h.services.GenerateToken(input.Username, input.Password)
	if err != nil {
		if h.log != nil {
			h.log.Infow("auth_sign_in_failed", "username", input.Username, "err", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Param        body  body  passwordChange  true  "current and new password"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/v1/password [post]
// @Security     BearerAuth
func (h *Handler) changePassword(c *gin.Context) {
	var input passwordChange
	if !h.bindJSONOrBadRequest(c, &input) {
		return
	}
	userID := c.GetInt(ctxUserID)

	err := h.services.ChangePassword(userID, input.Current, input.New)
	switch {
	case err == nil:
		if h.log != nil {
			h.log.Infow("password_changed", "user_id", userID)
		}
		c.Status(http.StatusNoContent)
	case errors.Is(err, service.ErrInvalidPassword):
		c.JSON(http.StatusForbidden, gin.H{"error": "current password does not match"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "operator no longer exists"})
	default:
		h.logAndJSONError(c, http.StatusBadRequest, err.Error(), "password_change_failed", err, "user_id", userID)
	}
}
