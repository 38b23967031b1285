// Package jira imports user stories from Jira Cloud.
package jira

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/storyqa/internal/model"
)

var domainPattern = regexp.MustCompile(`^https://[a-zA-Z0-9-]+\.atlassian\.net[/\\]?$`)

// ErrInvalidCredentials means Jira rejected the email/token pair
var ErrInvalidCredentials = errors.New("invalid Jira credentials")

// Session carries the tracker credentials explicitly through every call
type Session struct {
	Email   string `validate:"required,email"`
	Token   string `validate:"required"`
	Domain  string `validate:"required,atlassian_domain"`
	Board   string
	Project string `validate:"required"`
}

var sessionValidator = newSessionValidator()

func newSessionValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("atlassian_domain", func(fl validator.FieldLevel) bool {
		return domainPattern.MatchString(fl.Field().String())
	})
	return v
}

// SessionFromConfig builds a session from config; the board doubles as the
// project key when no project is set
func SessionFromConfig(cfg model.JiraConfig) Session {
	project := cfg.Project
	if project == "" {
		project = cfg.Board
	}
	return Session{
		Email:   strings.TrimSpace(cfg.Email),
		Token:   cfg.Token,
		Domain:  strings.TrimSpace(cfg.Domain),
		Board:   cfg.Board,
		Project: project,
	}
}

// Validate checks the session locally before any request is made
func (s Session) Validate() error {
	err := sessionValidator.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fmt.Sprintf("failed %s check", fe.Tag())
		if fe.Tag() == "atlassian_domain" {
			msg = "must look like https://your-site.atlassian.net"
		}
		return &model.ValidationError{Field: strings.ToLower(fe.Field()), Message: msg}
	}
	return &model.ValidationError{Field: "jira", Message: err.Error()}
}

// BaseURL returns the domain without a trailing separator
func (s Session) BaseURL() string {
	return strings.TrimRight(s.Domain, `/\`)
}

// String hides the token
func (s Session) String() string {
	return fmt.Sprintf("%s@%s (%s)", s.Email, s.BaseURL(), s.Project)
}
