package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ctxUserID is the gin context key holding the authenticated operator.
const ctxUserID = "userId"

// bearerToken extracts the token from "Authorization: Bearer <t>". Requests
// without the header may pass ?token= instead, which is what browser
// downloads and websocket handshakes can send.
func bearerToken(c *gin.Context) (token string, errMsg string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if t := c.Query("token"); t != "" {
			return t, ""
		}
		return "", "missing Authorization header"
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "invalid Authorization header format"
	}
	return parts[1], ""
}

func (h *Handler) userIdMiddleware(c *gin.Context) {
	token, errMsg := bearerToken(c)
	if errMsg != "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMsg})
		return
	}

	userId, err := h.services.ParseToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	c.Set(ctxUserID, userId)
	c.Next()
}

// wsAuthorized reports whether a websocket handshake may send commands.
// Status streaming itself is open, like the device's front panel LED.
func (h *Handler) wsAuthorized(c *gin.Context) bool {
	token, errMsg := bearerToken(c)
	if errMsg != "" {
		return false
	}
	_, err := h.services.ParseToken(token)
	return err == nil
}
