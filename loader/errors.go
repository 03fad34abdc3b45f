package loader

import "errors"

var (
	// ErrRootRequired is returned when the upload directory is empty.
	ErrRootRequired = errors.New("upload directory is required")

	// ErrFileTooLarge is returned for uploads over MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedType is returned for extensions outside AllowedExtensions.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("file is empty")

	// ErrNoText is returned when a document yields no extractable text.
	ErrNoText = errors.New("no text could be extracted")

	// ErrExtractFailed wraps parser failures for a document.
	ErrExtractFailed = errors.New("text extraction failed")
)
