package lobby

import (
	"regexp"
	"strings"
)

const (
	minUsernameLen = 4
	minPasswordLen = 8
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobilePattern = regexp.MustCompile(`^[0-9]{10}$`)
)

// FieldError is one failed form check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every failed check of a form, in field order. It
// is produced before any request is sent.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// Message returns the text for a given field, or "".
func (e *ValidationError) Message(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

type checker struct {
	fields []FieldError
}

func (c *checker) fail(field, msg string) {
	c.fields = append(c.fields, FieldError{Field: field, Message: msg})
}

func (c *checker) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: c.fields}
}

type SignupForm struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Mobile          string `json:"mobile"`
	Email           string `json:"email"`
}

type PasswordForm struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func validateLogin(username, password string) error {
	var c checker
	if len(username) < minUsernameLen {
		c.fail("username", "Username must be at least 4 characters")
	}
	if len(password) < minPasswordLen {
		c.fail("password", "Password must be at least 8 characters")
	}
	return c.err()
}

func validateSignup(f SignupForm) error {
	var c checker
	if len(f.Username) < minUsernameLen {
		c.fail("username", "Username must be at least 4 characters")
	}
	if len(f.Password) < minPasswordLen {
		c.fail("password", "Password must be at least 8 characters")
	}
	if f.ConfirmPassword == "" || f.ConfirmPassword != f.Password {
		c.fail("confirm_password", "Passwords do not match")
	}
	if !emailPattern.MatchString(f.Email) {
		c.fail("email", "Invalid email address")
	}
	if !mobilePattern.MatchString(f.Mobile) {
		c.fail("mobile", "Mobile number must be 10 digits")
	}
	return c.err()
}

func validatePasswordChange(f PasswordForm) error {
	var c checker
	if len(f.CurrentPassword) < minPasswordLen {
		c.fail("currentPassword", "Current password must be at least 8 characters")
	}
	switch {
	case len(f.NewPassword) < minPasswordLen:
		c.fail("newPassword", "New password must be at least 8 characters")
	case f.NewPassword == f.CurrentPassword:
		c.fail("newPassword", "New password must be different from the current password")
	}
	if f.ConfirmPassword != f.NewPassword {
		c.fail("confirmPassword", "Passwords do not match")
	}
	return c.err()
}
