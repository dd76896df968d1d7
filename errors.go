package main

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// ValidationError is raised before any cryptographic work starts.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// EncryptionError means seal (or cipher setup during open) could not complete.
type EncryptionError struct {
	Operation string
	Err       error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encryption failed: %s: %v", e.Operation, e.Err)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// MalformedContainerError means the blob cannot be a sealed container.
type MalformedContainerError struct {
	Size    int
	Message string
}

func (e *MalformedContainerError) Error() string {
	return fmt.Sprintf("malformed container (%d bytes): %s", e.Size, e.Message)
}

// AuthenticationError means the GCM tag did not verify.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

func newValidationError(field string, err error) error {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

func newEncryptionError(op string, err error) error {
	return &EncryptionError{Operation: op, Err: err}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsEncryptionError(err error) bool {
	var ee *EncryptionError
	return errors.As(err, &ee)
}

func IsMalformedContainerError(err error) bool {
	var me *MalformedContainerError
	return errors.As(err, &me)
}

func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}
