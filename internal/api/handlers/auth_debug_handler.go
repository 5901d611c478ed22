package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/memovox/memovox/internal/api/middleware"
)

// AuthDebugHandler mirrors what the access gate sees: the simulated
// identity in local mode, or the raw decoded EasyAuth principal.
type AuthDebugHandler struct {
	Env string
}

func NewAuthDebugHandler(env string) *AuthDebugHandler {
	return &AuthDebugHandler{Env: env}
}

func (h *AuthDebugHandler) Show(c *gin.Context) {
	if h.Env != "azure" {
		p, _ := middleware.GetPrincipal(c)
		c.JSON(http.StatusOK, gin.H{
			"mode": "LOCAL DEVELOPMENT",
			"user": p,
		})
		return
	}

	raw, ok := middleware.DecodeRawPrincipal(c.GetHeader(middleware.PrincipalHeader))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"error": "no client principal found"})
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}
