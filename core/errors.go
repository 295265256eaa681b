package core

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials is returned when username/password is wrong. It never
	// says which of the two failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidPost        = errors.New("invalid post")
	ErrUserNotFound       = errors.New("user not found")
	ErrPostNotFound       = errors.New("post not found")
	ErrNotOwner           = errors.New("not the post author")
)

// genericErrorMessage replaces storage and other unexpected failures at the HTTP boundary.
const genericErrorMessage = "Something went wrong. Please try again."

// credentialsErrorMessage is the only message a failed login ever shows.
const credentialsErrorMessage = "Invalid username / password."

// Problem is one violated rule.
type Problem struct {
	Kind    error
	Message string
}

// ValidationError collects every violated rule of a single request.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) add(kind error, msg string) {
	e.Problems = append(e.Problems, Problem{Kind: kind, Message: msg})
}

func (e *ValidationError) empty() bool { return len(e.Problems) == 0 }

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

// Messages returns the user-facing messages in the order the rules were checked.
func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		out = append(out, p.Message)
	}
	return out
}

func (e *ValidationError) Unwrap() []error {
	kinds := make([]error, 0, len(e.Problems))
	for _, p := range e.Problems {
		kinds = append(kinds, p.Kind)
	}
	return kinds
}

// userMessages maps any error to what a view may show: validation messages as-is,
// bad credentials as the generic login message, anything else as genericErrorMessage.
func userMessages(err error) []string {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Messages()
	}
	if errors.Is(err, ErrInvalidCredentials) {
		return []string{credentialsErrorMessage}
	}
	return []string{genericErrorMessage}
}
