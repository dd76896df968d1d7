package main

import (
	"crypto/subtle"
	"fmt"
	"os"
	"runtime"
	"sync"
	"syscall"
	"unicode/utf8"

	"golang.org/x/term"
)

const (
	// passwordEnvVar skips the interactive prompt (and its confirmation)
	passwordEnvVar = "CSVLOCK_PASSWORD"

	minPasswordLength = 8
)

// passwordReader reads one hidden line from the terminal; tests replace it
var passwordReader = readPassword

// promptState tracks a terminal that currently has echo disabled so an
// interrupt can put it back.
var promptState struct {
	mu    sync.Mutex
	fd    int
	state *term.State
}

func rememberTerminal(fd int) {
	state, err := term.GetState(fd)
	if err != nil {
		return
	}
	promptState.mu.Lock()
	promptState.fd = fd
	promptState.state = state
	promptState.mu.Unlock()
}

func forgetTerminal() {
	promptState.mu.Lock()
	promptState.state = nil
	promptState.mu.Unlock()
}

// restoreTerminal re-enables echo if a password prompt was interrupted
func restoreTerminal() {
	promptState.mu.Lock()
	defer promptState.mu.Unlock()
	if promptState.state != nil {
		_ = term.Restore(promptState.fd, promptState.state)
		promptState.state = nil
	}
}

// zeroBytes overwrites a byte slice with zeros
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// validatePassword applies the length policy, counted in characters
func validatePassword(password []byte, minLen int) error {
	if len(password) == 0 {
		return newValidationError("password", ErrEmptyPassword)
	}
	if utf8.RuneCount(password) < minLen {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters long", minLen),
			Err:     ErrPasswordTooShort,
		}
	}
	return nil
}

// getPassword reads a password for decryption
func getPassword(prompt string) ([]byte, error) {
	if envPass := os.Getenv(passwordEnvVar); envPass != "" {
		debugLog("using password from %s", passwordEnvVar)
		return []byte(envPass), nil
	}

	password, err := passwordReader(prompt)
	if err != nil {
		return nil, err
	}
	if len(password) == 0 {
		return nil, newValidationError("password", ErrEmptyPassword)
	}
	return password, nil
}

// getPasswordWithConfirm reads a password for encryption. The length policy
// is checked before the confirmation prompt is shown.
func getPasswordWithConfirm(prompt, confirmPrompt string, minLen int) ([]byte, error) {
	if envPass := os.Getenv(passwordEnvVar); envPass != "" {
		debugLog("using password from %s", passwordEnvVar)
		password := []byte(envPass)
		if err := validatePassword(password, minLen); err != nil {
			return nil, err
		}
		return password, nil
	}

	password, err := passwordReader(prompt)
	if err != nil {
		return nil, err
	}

	if err := validatePassword(password, minLen); err != nil {
		zeroBytes(password)
		return nil, err
	}

	confirm, err := passwordReader(confirmPrompt)
	if err != nil {
		zeroBytes(password)
		return nil, err
	}
	defer zeroBytes(confirm)

	if subtle.ConstantTimeCompare(password, confirm) != 1 {
		zeroBytes(password)
		return nil, newValidationError("password", ErrPasswordMismatch)
	}

	return password, nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		// STDIN is piped, read from the controlling terminal instead
		tty, err := os.Open("/dev/tty")
		if err != nil {
			fmt.Fprintln(os.Stderr)
			return nil, fmt.Errorf("cannot read password: stdin is not a terminal. Set %s", passwordEnvVar)
		}
		defer func() { _ = tty.Close() }()
		fd = int(tty.Fd())
	}

	rememberTerminal(fd)
	defer forgetTerminal()

	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}
