package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"haruboard/internal/auth"
	"haruboard/internal/middleware"
	"haruboard/internal/services"
)

// Sessions is the part of the session store the auth pages drive.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Signup(ctx context.Context, email, password, displayName string) (*services.Session, error)
	Logout(ctx context.Context, sess *services.Session) error
}

type AuthHandler struct {
	sessions Sessions
	log      *zap.Logger
}

func NewAuthHandler(sessions Sessions, log *zap.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, log: log}
}

// authFailure maps a provider error to a status and a message for the form.
func authFailure(err error, fallback string) (int, string) {
	switch auth.CodeOf(err) {
	case auth.CodeEmailAlreadyInUse:
		return http.StatusConflict, "This email is already in use."
	case auth.CodeInvalidEmail:
		return http.StatusBadRequest, msgInvalidEmail
	case auth.CodeWeakPassword:
		return http.StatusBadRequest, msgPasswordShort
	case auth.CodeUserNotFound:
		return http.StatusUnauthorized, "No account is registered with this email."
	case auth.CodeWrongPassword:
		return http.StatusUnauthorized, "The password is incorrect."
	case auth.CodeUserDisabled:
		return http.StatusForbidden, "This account has been disabled."
	}
	return http.StatusInternalServerError, fallback
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	Render(c, http.StatusOK, "auth/login.html", nil)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var form loginForm
	_ = c.ShouldBind(&form)

	if msg := form.check(); msg != "" {
		Render(c, http.StatusBadRequest, "auth/login.html", gin.H{"Error": msg, "Email": form.Email})
		return
	}

	sess, err := h.sessions.Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		code, msg := authFailure(err, "Login failed.")
		if code == http.StatusInternalServerError {
			h.log.Error("login failed", zap.Error(err))
		}
		Render(c, code, "auth/login.html", gin.H{"Error": msg, "Email": form.Email})
		return
	}

	if err := middleware.StartSession(c, sess); err != nil {
		serverError(c, h.log, err, "Login failed.")
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) ShowSignup(c *gin.Context) {
	Render(c, http.StatusOK, "auth/signup.html", nil)
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var form signupForm
	_ = c.ShouldBind(&form)

	view := gin.H{"Email": form.Email, "DisplayName": form.DisplayName}
	if msg := form.check(); msg != "" {
		view["Error"] = msg
		Render(c, http.StatusBadRequest, "auth/signup.html", view)
		return
	}

	sess, err := h.sessions.Signup(c.Request.Context(), form.Email, form.Password, form.DisplayName)
	if err != nil {
		code, msg := authFailure(err, "Sign up failed.")
		if code == http.StatusInternalServerError {
			h.log.Error("signup failed", zap.Error(err))
		}
		view["Error"] = msg
		Render(c, code, "auth/signup.html", view)
		return
	}

	if err := middleware.StartSession(c, sess); err != nil {
		serverError(c, h.log, err, "Sign up failed.")
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if sess := middleware.CurrentSession(c); sess != nil {
		if err := h.sessions.Logout(c.Request.Context(), sess); err != nil {
			h.log.Warn("logout failed", zap.String("uid", sess.UID()), zap.Error(err))
		}
	}
	if err := middleware.EndSession(c); err != nil {
		h.log.Warn("clear session cookie failed", zap.Error(err))
	}
	c.Redirect(http.StatusFound, "/login")
}
