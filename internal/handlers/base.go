package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"haruboard/internal/middleware"
	"haruboard/internal/telemetry"
)

// Render injects the common page variables, such as the current session.
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if sess := middleware.CurrentSession(c); sess != nil {
		obj["Session"] = sess
		obj["CurrentUID"] = sess.UID()
		obj["CurrentUserName"] = sess.Profile.Name()
	}
	obj["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, obj)
}

// RenderError shows a page-level message with a link back to the list.
func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message})
}

// serverError logs and reports err, then shows message with a 500.
func serverError(c *gin.Context, log *zap.Logger, err error, message string) {
	log.Error(message,
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	telemetry.CaptureError(c, err)
	_ = c.Error(err)
	RenderError(c, http.StatusInternalServerError, message)
}
