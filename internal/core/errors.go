package core

import (
	"errors"
	"fmt"

	"envirotrack/pkg/domain"
)

var (
	// ErrValidation marks a record or profile rejected by the required-field gate.
	ErrValidation = errors.New("validation failed")
	// ErrUnknownCollection is returned for a collection key outside the ten modules.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrNoOpenWorkspace is returned by record operations when no workspace is open.
	ErrNoOpenWorkspace = errors.New("no workspace is open")
	// ErrWorkspaceNotFound is returned when a workspace id does not resolve.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrMalformedImport rejects an import document as a whole.
	ErrMalformedImport = errors.New("malformed import document")
	// ErrNoRecords is returned when exporting an empty collection as rows.
	ErrNoRecords = errors.New("no records to export")
	// ErrStoreClosed is reported for saves issued after the store was closed.
	ErrStoreClosed = errors.New("store closed")
)

// ValidationError names the field that failed the required-field gate.
type ValidationError struct {
	Collection domain.CollectionKey
	Field      string
	Label      string
}

func (e *ValidationError) Error() string {
	label := e.Label
	if label == "" {
		label = e.Field
	}
	if e.Collection == "" {
		return fmt.Sprintf("%q is required", label)
	}
	return fmt.Sprintf("%s: %q is required", e.Collection, label)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }
