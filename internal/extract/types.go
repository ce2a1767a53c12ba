package extract

import (
	"fmt"
	"time"

	"github.com/mfenderov/docindex/pkg/models"
)

// Metadata holds document-info fields read from the source file.
type Metadata struct {
	Author      string
	CreatedDate *time.Time
}

// RawImage is an embedded image as stored in the source file.
type RawImage struct {
	Data  []byte
	Ext   string // file extension without the dot: "png", "jpg", "tif", ...
	Page  int    // 1-based page number for PDF, 0 when unknown
	Index int    // 1-based position in extraction order
}

// Extraction is the output of a format extractor.
type Extraction struct {
	FileType models.FileType
	Text     string
	Metadata Metadata
	Images   []RawImage
	Faults   []Fault
}

func (e *Extraction) addFault(kind FaultKind, scope string, err error) {
	e.Faults = append(e.Faults, Fault{Kind: kind, Scope: scope, Err: err})
}

// FaultKind classifies a recoverable extraction failure.
type FaultKind string

const (
	FaultEncrypted FaultKind = "encrypted" // could not decrypt with an empty password
	FaultCorrupt   FaultKind = "corrupt"   // document structure unreadable
	FaultPage      FaultKind = "page"      // one page or paragraph stream failed
	FaultImage     FaultKind = "image"     // one embedded image failed
	FaultMetadata  FaultKind = "metadata"  // document-info or core properties unreadable
	FaultDate      FaultKind = "date"      // creation and modification dates unparsable
)

// Fault records a failure that degraded the extraction without aborting it.
type Fault struct {
	Kind  FaultKind
	Scope string // "page 3", "rId7", "CreationDate", ...
	Err   error
}

func (f Fault) Error() string {
	if f.Scope == "" {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%s (%s): %v", f.Kind, f.Scope, f.Err)
}

func (f Fault) Unwrap() error {
	return f.Err
}
