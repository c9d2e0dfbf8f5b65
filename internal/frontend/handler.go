package frontend

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StaticHandler serves the embedded assets under prefix with caching.
func StaticHandler(prefix string, assets fs.FS) gin.HandlerFunc {
	fileServer := http.StripPrefix(prefix, http.FileServer(http.FS(assets)))

	return func(c *gin.Context) {
		c.Header("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}
