package handlers

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"haruboard/internal/auth"
)

func TestPostFormCheck(t *testing.T) {
	tests := []struct {
		name string
		form postForm
		want string
	}{
		{"ok", postForm{Title: "Hello", Content: "World"}, ""},
		{"blank title wins", postForm{Title: "  ", Content: ""}, msgTitleRequired},
		{"blank content", postForm{Title: "Hello", Content: "\n\t"}, msgContentRequired},
		{"content before length", postForm{Title: strings.Repeat("x", 201), Content: ""}, msgContentRequired},
		{"too long", postForm{Title: strings.Repeat("x", 201), Content: "c"}, msgTitleTooLong},
		{"limit counts characters", postForm{Title: strings.Repeat("é", 200), Content: "c"}, ""},
		{"trimmed before length", postForm{Title: "  " + strings.Repeat("x", 200) + "  ", Content: "c"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.form.check())
		})
	}
}

func TestSignupFormCheck(t *testing.T) {
	valid := signupForm{Email: "a@b.co", DisplayName: "A", Password: "secret1", PasswordConfirm: "secret1"}
	assert.Empty(t, valid.check())

	tests := []struct {
		name string
		edit func(*signupForm)
		want string
	}{
		{"missing email", func(f *signupForm) { f.Email = "" }, msgSignupRequired},
		{"missing name", func(f *signupForm) { f.DisplayName = "" }, msgSignupRequired},
		{"missing confirm", func(f *signupForm) { f.PasswordConfirm = ""; f.Password = "1" }, msgSignupRequired},
		{"short password", func(f *signupForm) { f.Password = "12345"; f.PasswordConfirm = "x"; f.Email = "bad" }, msgPasswordShort},
		{"mismatch", func(f *signupForm) { f.PasswordConfirm = "secret2"; f.Email = "bad" }, msgPasswordMatch},
		{"email pattern", func(f *signupForm) { f.Email = "a@b" }, msgInvalidEmail},
		{"email with space", func(f *signupForm) { f.Email = "a b@c.de" }, msgInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.edit(&f)
			assert.Equal(t, tt.want, f.check())
		})
	}
}

func TestLoginFormCheck(t *testing.T) {
	assert.Empty(t, loginForm{Email: "a@b.co", Password: "x"}.check())
	assert.Equal(t, msgLoginRequired, loginForm{Email: "a@b.co"}.check())
	assert.Equal(t, msgLoginRequired, loginForm{Password: "x"}.check())
}

func TestAuthFailure(t *testing.T) {
	tests := []struct {
		code   string
		status int
		msg    string
	}{
		{auth.CodeEmailAlreadyInUse, http.StatusConflict, "This email is already in use."},
		{auth.CodeInvalidEmail, http.StatusBadRequest, "Please enter a valid email address."},
		{auth.CodeWeakPassword, http.StatusBadRequest, "Password must be at least 6 characters."},
		{auth.CodeUserNotFound, http.StatusUnauthorized, "No account is registered with this email."},
		{auth.CodeWrongPassword, http.StatusUnauthorized, "The password is incorrect."},
		{auth.CodeUserDisabled, http.StatusForbidden, "This account has been disabled."},
	}
	for _, tt := range tests {
		status, msg := authFailure(&auth.Error{Code: tt.code}, "fallback")
		assert.Equal(t, tt.status, status, tt.code)
		assert.Equal(t, tt.msg, msg, tt.code)
	}

	status, msg := authFailure(errors.New("boom"), "Login failed.")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Login failed.", msg)
}
