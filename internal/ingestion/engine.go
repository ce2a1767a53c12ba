// Package ingestion runs documents through the pipeline on a bounded worker
// pool and writes the assembled records to the search index.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/mfenderov/docindex/internal/elasticsearch"
	"github.com/mfenderov/docindex/internal/events"
	"github.com/mfenderov/docindex/internal/extract"
	"github.com/mfenderov/docindex/internal/pipeline"
	"github.com/mfenderov/docindex/pkg/models"
)

var (
	// ErrMissingDocumentID is returned for a loaded record without an id.
	ErrMissingDocumentID = errors.New("document_id is required")
	// ErrNoProcessor is returned when a file is ingested by a load-only engine.
	ErrNoProcessor = errors.New("no document processor configured")
)

// Processor turns a source file into a document.
type Processor interface {
	Process(ctx context.Context, in pipeline.Input) (*models.Document, *pipeline.Report, error)
}

// Indexer is the part of the search gateway the engine writes through.
type Indexer interface {
	Index(ctx context.Context, index string, doc models.Document, id string) (*elasticsearch.IndexResult, error)
	Exists(ctx context.Context, index, id string) (bool, error)
	Refresh(ctx context.Context, index string) error
}

// Archiver keeps a copy of every indexed record.
type Archiver interface {
	PutRecord(ctx context.Context, doc models.Document) error
}

// Config holds ingestion engine configuration.
type Config struct {
	Index string
	// Workers is the number of documents processed at once (default: NumCPU).
	Workers int
	// UploadDir receives staged uploads (default: os.TempDir()).
	UploadDir string
	// SkipExisting skips documents whose id is already indexed. It only
	// applies when the id is known up front.
	SkipExisting bool
	// Events, when set, receives one event per document. It must be drained.
	Events chan<- events.DocumentIngestedEvent
	Logger *slog.Logger
}

// DocumentResult is the outcome of one document.
type DocumentResult struct {
	Source     string
	DocumentID string
	Outcome    events.Outcome
	Document   *models.Document
	Report     *pipeline.Report // nil for loaded records
	Err        error
	Duration   time.Duration
}

// Result holds batch results. Documents are in submission order.
type Result struct {
	Documents []DocumentResult
	Indexed   int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// Event summarizes the batch.
func (r *Result) Event() events.IngestionCompleteEvent {
	ev := events.IngestionCompleteEvent{
		Documents: len(r.Documents),
		Indexed:   r.Indexed,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
		Duration:  r.Duration,
	}
	for _, d := range r.Documents {
		if d.Err != nil {
			ev.Errors = append(ev.Errors, fmt.Sprintf("%s: %v", d.Source, d.Err))
		}
	}
	return ev
}

// Engine processes and indexes documents. Each document runs the whole
// pipeline on one worker; documents share no mutable state.
type Engine struct {
	pool      *ants.Pool
	processor Processor
	indexer   Indexer
	archive   Archiver
	cfg       Config
	logger    *slog.Logger
}

// New creates an ingestion engine. archive may be nil; without a processor
// the engine can only Load assembled records.
func New(processor Processor, indexer Indexer, archive Archiver, config Config) (*Engine, error) {
	if indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.UploadDir == "" {
		config.UploadDir = os.TempDir()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	pool, err := ants.NewPool(config.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Engine{
		pool:      pool,
		processor: processor,
		indexer:   indexer,
		archive:   archive,
		cfg:       config,
		logger:    config.Logger,
	}, nil
}

// Release stops the worker pool. The engine must not be used afterwards.
func (e *Engine) Release() {
	e.pool.Release()
}

// IngestFiles processes and indexes the files concurrently.
func (e *Engine) IngestFiles(ctx context.Context, paths []string) (*Result, error) {
	inputs := make([]pipeline.Input, len(paths))
	for i, p := range paths {
		inputs[i] = pipeline.Input{Path: p}
	}
	return e.IngestInputs(ctx, inputs)
}

// IngestInputs processes and indexes the inputs concurrently.
func (e *Engine) IngestInputs(ctx context.Context, inputs []pipeline.Input) (*Result, error) {
	e.logger.Info("starting ingestion", "documents", len(inputs), "workers", e.cfg.Workers)
	return e.runBatch(ctx, len(inputs), func(ctx context.Context, i int) DocumentResult {
		return e.ingest(ctx, inputs[i])
	})
}

// IngestFile processes and indexes one file on the calling goroutine.
func (e *Engine) IngestFile(ctx context.Context, in pipeline.Input) (*DocumentResult, error) {
	res := e.ingest(ctx, in)
	if res.Outcome == events.OutcomeIndexed || res.Outcome == events.OutcomeSkipped {
		if err := e.indexer.Refresh(ctx, e.cfg.Index); err != nil {
			e.logger.Warn("failed to refresh index", "index", e.cfg.Index, "error", err)
		}
	}
	return &res, res.Err
}

// IngestReader stages an uploaded stream in the upload directory, ingests
// it under its original name and removes the staged copy.
func (e *Engine) IngestReader(ctx context.Context, name string, r io.Reader) (*DocumentResult, error) {
	if _, err := extract.DetectFileType(name); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	f, err := os.CreateTemp(e.cfg.UploadDir, "upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}

	return e.IngestFile(ctx, pipeline.Input{Path: f.Name(), Name: filepath.Base(name)})
}

// Load indexes already assembled records concurrently.
func (e *Engine) Load(ctx context.Context, docs []models.Document) (*Result, error) {
	e.logger.Info("loading records", "documents", len(docs), "workers", e.cfg.Workers)
	return e.runBatch(ctx, len(docs), func(ctx context.Context, i int) DocumentResult {
		return e.load(ctx, docs[i])
	})
}

// LoadFile reads a JSON array of records.
func LoadFile(path string) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	var docs []models.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	return docs, nil
}

func (e *Engine) runBatch(ctx context.Context, n int, fn func(context.Context, int) DocumentResult) (*Result, error) {
	start := time.Now()
	results := make([]DocumentResult, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			results[i] = fn(ctx, i)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("failed to submit document: %w", err)
		}
	}
	wg.Wait()

	result := &Result{Documents: results}
	for _, r := range results {
		switch r.Outcome {
		case events.OutcomeIndexed:
			result.Indexed++
		case events.OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	if result.Indexed > 0 {
		// Refresh index to make documents searchable immediately
		if err := e.indexer.Refresh(ctx, e.cfg.Index); err != nil {
			e.logger.Warn("failed to refresh index", "index", e.cfg.Index, "error", err)
		}
	}

	result.Duration = time.Since(start)
	e.logger.Info("ingestion complete",
		"documents", n,
		"indexed", result.Indexed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", result.Duration)

	return result, nil
}

func (e *Engine) ingest(ctx context.Context, in pipeline.Input) DocumentResult {
	start := time.Now()
	source := in.Name
	if source == "" {
		source = filepath.Base(in.Path)
	}
	res := DocumentResult{Source: source, DocumentID: in.DocumentID}

	if e.processor == nil {
		return e.finish(ctx, res.failed(ErrNoProcessor), start)
	}
	if err := ctx.Err(); err != nil {
		return e.finish(ctx, res.failed(err), start)
	}

	skip, err := e.skip(ctx, in.DocumentID)
	if err != nil {
		return e.finish(ctx, res.failed(err), start)
	}
	if skip {
		res.Outcome = events.OutcomeSkipped
		return e.finish(ctx, res, start)
	}

	doc, report, err := e.processor.Process(ctx, in)
	if err != nil {
		return e.finish(ctx, res.failed(err), start)
	}
	res.Document, res.Report, res.DocumentID = doc, report, doc.DocumentID

	if err := e.index(ctx, *doc); err != nil {
		return e.finish(ctx, res.failed(err), start)
	}
	res.Outcome = events.OutcomeIndexed
	return e.finish(ctx, res, start)
}

func (e *Engine) load(ctx context.Context, doc models.Document) DocumentResult {
	start := time.Now()
	res := DocumentResult{Source: doc.DocumentID, DocumentID: doc.DocumentID, Document: &doc}

	if doc.DocumentID == "" {
		res.Source = doc.Title
		return e.finish(ctx, res.failed(ErrMissingDocumentID), start)
	}
	if err := ctx.Err(); err != nil {
		return e.finish(ctx, res.failed(err), start)
	}

	skip, err := e.skip(ctx, doc.DocumentID)
	if err != nil {
		return e.finish(ctx, res.failed(err), start)
	}
	if skip {
		res.Outcome = events.OutcomeSkipped
		return e.finish(ctx, res, start)
	}

	if err := e.index(ctx, doc); err != nil {
		return e.finish(ctx, res.failed(err), start)
	}
	res.Outcome = events.OutcomeIndexed
	return e.finish(ctx, res, start)
}

func (e *Engine) skip(ctx context.Context, id string) (bool, error) {
	if !e.cfg.SkipExisting || id == "" {
		return false, nil
	}
	exists, err := e.indexer.Exists(ctx, e.cfg.Index, id)
	if err != nil {
		return false, fmt.Errorf("failed to check document %s: %w", id, err)
	}
	return exists, nil
}

func (e *Engine) index(ctx context.Context, doc models.Document) error {
	if _, err := e.indexer.Index(ctx, e.cfg.Index, doc, doc.DocumentID); err != nil {
		return fmt.Errorf("failed to index document %s: %w", doc.DocumentID, err)
	}
	if e.archive != nil {
		if err := e.archive.PutRecord(ctx, doc); err != nil {
			e.logger.Warn("failed to archive record", "document_id", doc.DocumentID, "error", err)
		}
	}
	return nil
}

func (r DocumentResult) failed(err error) DocumentResult {
	r.Outcome = events.OutcomeFailed
	r.Err = err
	return r
}

func (e *Engine) finish(ctx context.Context, res DocumentResult, start time.Time) DocumentResult {
	res.Duration = time.Since(start)

	switch res.Outcome {
	case events.OutcomeFailed:
		e.logger.Error("failed to ingest document", "source", res.Source, "error", res.Err)
	case events.OutcomeSkipped:
		e.logger.Debug("document already indexed", "source", res.Source, "document_id", res.DocumentID)
	default:
		e.logger.Debug("document indexed", "source", res.Source, "document_id", res.DocumentID, "duration", res.Duration)
	}

	if e.cfg.Events != nil {
		ev := events.DocumentIngestedEvent{
			Source:     res.Source,
			DocumentID: res.DocumentID,
			Outcome:    res.Outcome,
			Err:        res.Err,
			Duration:   res.Duration,
		}
		if res.Report != nil {
			for _, f := range res.Report.Faults {
				ev.Faults = append(ev.Faults, f.Error())
			}
		}
		select {
		case e.cfg.Events <- ev:
		case <-ctx.Done():
		}
	}
	return res
}
