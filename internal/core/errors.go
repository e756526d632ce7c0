package core

import "errors"

var (
	// ErrUnreadableWorkbook is returned when the input is not a valid workbook container.
	ErrUnreadableWorkbook = errors.New("unreadable workbook")

	// ErrFileTooLarge is returned when an uploaded workbook exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile is returned when the upload carries no bytes.
	ErrEmptyFile = errors.New("empty file")

	// ErrPreviewNotFound is returned for unknown or expired import previews.
	ErrPreviewNotFound = errors.New("import preview not found")

	// ErrImportBlocked is returned when a preview has ERROR issues.
	ErrImportBlocked = errors.New("import blocked by validation errors")

	// ErrActorRequired is returned when no actor identity was supplied.
	ErrActorRequired = errors.New("actor id is required")

	// ErrActorMismatch is returned when a preview is executed by a different actor.
	ErrActorMismatch = errors.New("import preview belongs to another actor")

	// ErrUnknownTable is returned by stores for tables outside the import schema.
	ErrUnknownTable = errors.New("unknown table")

	// ErrRecordNotFound is returned by stores when an update targets a missing id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrAuditUnavailable is returned when the audit sink cannot be queried.
	ErrAuditUnavailable = errors.New("audit log is not readable")
)
