package events

import "time"

// Outcome of one document's ingestion.
type Outcome string

const (
	OutcomeIndexed Outcome = "indexed"
	OutcomeSkipped Outcome = "skipped" // already in the index
	OutcomeFailed  Outcome = "failed"
)

// DocumentIngestedEvent is sent when one document leaves the ingestion engine.
type DocumentIngestedEvent struct {
	Source     string        // original file name, or the document id for loaded records
	DocumentID string        // empty when processing failed before an id was assigned
	Outcome    Outcome       // result for this document
	Faults     []string      // recoverable extraction faults
	Err        error         // set when Outcome is OutcomeFailed
	Duration   time.Duration // how long the document took
}

// IngestionCompleteEvent is sent when a batch finishes.
type IngestionCompleteEvent struct {
	Documents int           // number of documents submitted
	Indexed   int           // number of documents indexed
	Skipped   int           // number of documents already present
	Failed    int           // number of documents that failed
	Duration  time.Duration // how long the batch took
	Errors    []string      // per-document errors
}
