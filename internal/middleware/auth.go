package middleware

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"haruboard/internal/services"
)

const (
	// SessionKey holds the *services.Session of the signed-in user.
	SessionKey = "session"

	tokenKey = "token"
)

// Resumer restores a session from a stored token.
type Resumer interface {
	Resume(ctx context.Context, token string) (*services.Session, error)
}

// LoadSession resolves the session cookie before any handler runs, so pages
// only ever see a settled session or none at all.
func LoadSession(store Resumer, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(tokenKey).(string)
		if token == "" {
			c.Next()
			return
		}

		sess, err := store.Resume(c.Request.Context(), token)
		if err != nil {
			log.Debug("drop session", zap.Error(err))
			session.Delete(tokenKey)
			if err := session.Save(); err != nil {
				log.Warn("clear session cookie failed", zap.Error(err))
			}
			c.Next()
			return
		}

		// token 临近过期时会被换新
		if sess.Identity.Token != token {
			session.Set(tokenKey, sess.Identity.Token)
			if err := session.Save(); err != nil {
				log.Warn("save refreshed token failed", zap.Error(err))
			}
		}

		c.Set(SessionKey, sess)
		c.Next()
	}
}

// AuthRequired sends visitors without a session to the login page.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentSession(c) == nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RedirectIfAuthenticated keeps signed-in users off the login and signup pages.
func RedirectIfAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentSession(c) != nil {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

func CurrentSession(c *gin.Context) *services.Session {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*services.Session)
	return sess
}

// StartSession stores the token in the session cookie.
func StartSession(c *gin.Context, sess *services.Session) error {
	session := sessions.Default(c)
	session.Set(tokenKey, sess.Identity.Token)
	c.Set(SessionKey, sess)
	return session.Save()
}

// EndSession clears the session cookie.
func EndSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	c.Set(SessionKey, (*services.Session)(nil))
	return session.Save()
}
