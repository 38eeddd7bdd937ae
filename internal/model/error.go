package model

import (
	"errors"
	"fmt"
)

var ErrorDuplicateUser = errors.New("user already registered")
var ErrorDuplicateUsername = fmt.Errorf("username taken: %w", ErrorDuplicateUser)
var ErrorDuplicateEmail = fmt.Errorf("email taken: %w", ErrorDuplicateUser)
var ErrorInvalidCredentials = errors.New("incorrect username, email or password")
var ErrorNotAuthenticated = errors.New("not authenticated")
var ErrorIncorrectPassword = errors.New("incorrect password")
var ErrorInvalidEmail = errors.New("invalid email")
var ErrorTokenExpiredOrInvalid = errors.New("token expired or invalid")
var ErrorUpstreamProvider = errors.New("upstream provider error")
var ErrorAuthorizationCancelled = errors.New("authorization cancelled")
var ErrorDelivery = errors.New("mail delivery failed")
var ErrorUserNotFound = errors.New("user not found")
var ErrorPostNotFound = errors.New("post not found")
var ErrorForbidden = errors.New("forbidden")
var ErrorUnknownKey = fmt.Errorf("unknown signing key: %w", ErrorUpstreamProvider)

// ValidationError reports the first required field found missing.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required!", e.Field)
}

func Required(field string) error {
	return &ValidationError{Field: field}
}
