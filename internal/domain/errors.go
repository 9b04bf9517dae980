package domain

import "errors"

var (
	ErrNotFound             = errors.New("resource not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrDocumentNotCompleted = errors.New("document processing not completed")
	ErrUnsupportedFileType  = errors.New("unsupported file type")
	ErrFileTooLarge         = errors.New("file exceeds maximum allowed size")
	ErrEmptyFile            = errors.New("file is empty")
	ErrInvalidTransition    = errors.New("invalid pipeline state transition")
	ErrAlreadyClaimed       = errors.New("document already claimed for processing")
	ErrObjectExists         = errors.New("object already exists")
	ErrObjectNotFound       = errors.New("object not found")

	// Pipeline error taxonomy.
	ErrProviderUnavailable     = errors.New("extraction provider unavailable")
	ErrProviderMalformedOutput = errors.New("extraction provider returned malformed output")
	ErrStorage                 = errors.New("storage error")
	ErrNormalization           = errors.New("could not normalize value")
	ErrLeaseExpired            = errors.New("processing lease expired")
)
