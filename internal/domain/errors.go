// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates a malformed request rejected at the ingestion boundary.
var ErrValidation = errors.New("validation failed")
