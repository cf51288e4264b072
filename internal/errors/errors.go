package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Auth errors are fatal to a sync run.

// AuthError covers a missing credential, a rejected refresh, or a
// structurally invalid refresh response.
type AuthError struct {
	Reason string
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("auth failed (%s): status %d: %s", e.Reason, e.Status, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("auth failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// Remote API errors.

// RemoteAPIError is a non-2xx response from the Strava API.
type RemoteAPIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("strava api %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

// IsRateLimit reports whether the remote rejected the call for quota
// reasons, so callers can apply backoff.
func (e *RemoteAPIError) IsRateLimit() bool {
	return e.Status == http.StatusTooManyRequests
}

// IsClientError reports a 4xx status other than rate limiting.
func (e *RemoteAPIError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500 && !e.IsRateLimit()
}

// IsServerError reports a 5xx status.
func (e *RemoteAPIError) IsServerError() bool {
	return e.Status >= 500
}

// IsRemoteAPIError reports whether err is (or wraps) a RemoteAPIError.
func IsRemoteAPIError(err error) bool {
	var re *RemoteAPIError
	return errors.As(err, &re)
}

// AsRemoteAPIError extracts the RemoteAPIError from err, if any.
func AsRemoteAPIError(err error) (*RemoteAPIError, bool) {
	var re *RemoteAPIError
	ok := errors.As(err, &re)
	return re, ok
}

// PersistenceError means the batch write failed and was not
// recoverable even row by row.

type PersistenceError struct {
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed for table %s: %v", e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err is (or wraps) a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

type ErrFileWrite struct {
	Path string
	Err  error
}

func (e *ErrFileWrite) Error() string {
	return fmt.Sprintf("failed to write file %s: %v", e.Path, e.Err)
}

func (e *ErrFileWrite) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}
