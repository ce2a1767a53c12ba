package extract

import "errors"

var (
	// ErrUnsupportedFormat is returned for file types other than PDF and DOCX.
	ErrUnsupportedFormat = errors.New("unsupported file format: only .pdf and .docx are accepted")

	// ErrUnreadable is returned when the source file cannot be opened at all.
	ErrUnreadable = errors.New("file is not readable")

	errPasswordProtected = errors.New("document is password protected")
	errNoDate            = errors.New("no parsable creation or modification date")
)
