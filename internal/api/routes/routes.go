package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/memovox/memovox/internal/api/handlers"
)

type Deps struct {
	Transcribe *handlers.TranscribeHandler
	AuthDebug  *handlers.AuthDebugHandler

	// Gate is the pluggable authorization middleware (dual-mode).
	Gate gin.HandlerFunc

	// LocalDev enables CORS for the dev frontend origins.
	LocalDev bool

	// PublicDir holds the static frontend; empty disables it.
	PublicDir string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	if d.LocalDev {
		r.Use(cors.New(cors.Config{
			AllowOrigins: []string{"http://127.0.0.1:5500", "http://localhost:5500"},
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{"Content-Type", "Authorization"},
		}))
	}

	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	protected := r.Group("/")
	protected.Use(d.Gate)
	protected.POST("/trascrivi", d.Transcribe.Handle)
	protected.GET("/api/debug/auth", d.AuthDebug.Show)

	// EasyAuth lands here after login; the SPA takes over.
	r.GET("/.auth/login/aad/callback", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/")
	})

	if d.PublicDir != "" {
		r.NoRoute(spaHandler(d.PublicDir))
	}
}

// spaHandler serves files from the public dir, falling back to
// index.html so client-side routes resolve.
func spaHandler(publicDir string) gin.HandlerFunc {
	index := filepath.Join(publicDir, "index.html")
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Status(http.StatusNotFound)
			return
		}
		path := filepath.Join(publicDir, filepath.Clean("/"+c.Request.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			c.File(path)
			return
		}
		c.File(index)
	}
}
