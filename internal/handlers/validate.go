package handlers

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"haruboard/internal/auth"
	"haruboard/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// local@domain.tld, same rule the provider applies
	_ = v.RegisterValidation("basic_email", func(fl validator.FieldLevel) bool {
		return auth.ValidEmail(fl.Field().String())
	})
	return v
}

// rule is one form check. Rules run in order and the first failure wins.
type rule struct {
	value   interface{}
	other   interface{}
	tag     string
	message string
}

func (r rule) failed() bool {
	if r.other != nil {
		return validate.VarWithValue(r.value, r.other, r.tag) != nil
	}
	return validate.Var(r.value, r.tag) != nil
}

func firstFailure(rules ...rule) string {
	for _, r := range rules {
		if r.failed() {
			return r.message
		}
	}
	return ""
}

const (
	msgTitleRequired   = "Please enter a title."
	msgContentRequired = "Please enter the content."
	msgTitleTooLong    = "Title must be 200 characters or fewer."

	msgLoginRequired  = "Please enter your email and password."
	msgSignupRequired = "Please fill in all fields."
	msgPasswordShort  = "Password must be at least 6 characters."
	msgPasswordMatch  = "Passwords do not match."
	msgInvalidEmail   = "Please enter a valid email address."
)

type postForm struct {
	Title   string `form:"title"`
	Content string `form:"content"`
}

func (f postForm) check() string {
	title := strings.TrimSpace(f.Title)
	return firstFailure(
		rule{value: title, tag: "required", message: msgTitleRequired},
		rule{value: strings.TrimSpace(f.Content), tag: "required", message: msgContentRequired},
		rule{value: title, tag: "max=" + strconv.Itoa(models.MaxTitleLength), message: msgTitleTooLong},
	)
}

type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

func (f loginForm) check() string {
	return firstFailure(
		rule{value: f.Email, tag: "required", message: msgLoginRequired},
		rule{value: f.Password, tag: "required", message: msgLoginRequired},
	)
}

type signupForm struct {
	Email           string `form:"email"`
	DisplayName     string `form:"display_name"`
	Password        string `form:"password"`
	PasswordConfirm string `form:"password_confirm"`
}

func (f signupForm) check() string {
	return firstFailure(
		rule{value: f.Email, tag: "required", message: msgSignupRequired},
		rule{value: f.DisplayName, tag: "required", message: msgSignupRequired},
		rule{value: f.Password, tag: "required", message: msgSignupRequired},
		rule{value: f.PasswordConfirm, tag: "required", message: msgSignupRequired},
		rule{value: f.Password, tag: "min=" + strconv.Itoa(auth.MinPasswordLength), message: msgPasswordShort},
		rule{value: f.PasswordConfirm, other: f.Password, tag: "eqcsfield", message: msgPasswordMatch},
		rule{value: f.Email, tag: "basic_email", message: msgInvalidEmail},
	)
}
