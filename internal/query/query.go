// Package query builds Elasticsearch request bodies for document retrieval:
// match-all browsing, keyword search and hybrid vector scoring.
package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPage is returned for a page number below 1.
	ErrInvalidPage = errors.New("page must be >= 1")

	// ErrInvalidSize is returned for a page size below 1.
	ErrInvalidSize = errors.New("size must be >= 1")
)

// Field names of the stored vectors.
const (
	TextVectorField  = "text_embedding"
	ImageVectorField = "image_embedding"
)

// Script parameter names for the query vectors.
const (
	textVectorParam  = "query_vector"
	imageVectorParam = "image_vector"
)

// Config holds query builder configuration.
type Config struct {
	// Fields searched by keyword queries (default: title, text_content).
	// A single field produces a match query instead of multi_match.
	Fields []string
	// RequireKeywordMatch restricts hybrid queries to documents matching the
	// query text, without letting the keyword score affect ranking.
	RequireKeywordMatch bool
}

// Request is a retrieval request. Page is 1-based.
type Request struct {
	Text        string
	TextVector  []float32
	ImageVector []float32
	Page        int
	Size        int
}

// Builder turns requests into search bodies. It is immutable after New.
type Builder struct {
	fields              []string
	requireKeywordMatch bool
}

// New creates a Builder.
func New(config Config) *Builder {
	fields := config.Fields
	if len(fields) == 0 {
		fields = []string{"title", "text_content"}
	}
	return &Builder{
		fields:              append([]string(nil), fields...),
		requireKeywordMatch: config.RequireKeywordMatch,
	}
}

// Offset converts a 1-based page into a hit offset.
func Offset(page, size int) (int, error) {
	if page < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidPage, page)
	}
	if size < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	return (page - 1) * size, nil
}

// Build returns the search body for req.
func (b *Builder) Build(req Request) (map[string]interface{}, error) {
	from, err := Offset(req.Page, req.Size)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"from": from,
		"size": req.Size,
	}

	text := strings.TrimSpace(req.Text)
	switch {
	case len(req.TextVector) > 0 || len(req.ImageVector) > 0:
		body["query"] = b.scriptScore(text, req.TextVector, req.ImageVector)
	case text != "":
		body["query"] = b.keyword(text)
	default:
		body["query"] = matchAll()
	}
	return body, nil
}

func matchAll() map[string]interface{} {
	return map[string]interface{}{"match_all": map[string]interface{}{}}
}

func (b *Builder) keyword(text string) map[string]interface{} {
	if len(b.fields) == 1 {
		return map[string]interface{}{
			"match": map[string]interface{}{
				b.fields[0]: map[string]interface{}{"query": text},
			},
		}
	}
	return map[string]interface{}{
		"multi_match": map[string]interface{}{
			"query":  text,
			"fields": b.fields,
		},
	}
}

func (b *Builder) scriptScore(text string, textVec, imageVec []float32) map[string]interface{} {
	inner := matchAll()
	if b.requireKeywordMatch && text != "" {
		inner = map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{b.keyword(text)},
			},
		}
	}

	params := map[string]interface{}{}
	var terms []string
	if len(textVec) > 0 {
		params[textVectorParam] = textVec
		terms = append(terms, guardedCosine(textVectorParam, TextVectorField))
	}
	if len(imageVec) > 0 {
		params[imageVectorParam] = imageVec
		terms = append(terms, guardedCosine(imageVectorParam, ImageVectorField))
	}

	return map[string]interface{}{
		"script_score": map[string]interface{}{
			"query": inner,
			"script": map[string]interface{}{
				"source": strings.Join(terms, " + "),
				"params": params,
			},
		},
	}
}

// guardedCosine is the Painless rendering of CosineTerm: documents without a
// stored vector contribute 0 instead of failing the query.
func guardedCosine(param, field string) string {
	return fmt.Sprintf("(doc['%s'].size() == 0 ? 0.0 : cosineSimilarity(params.%s, '%s') + 1.0)",
		field, param, field)
}

// VectorScan returns a match-all body that pages through stored text vectors.
func VectorScan(from, size int) map[string]interface{} {
	return map[string]interface{}{
		"from":    from,
		"size":    size,
		"_source": []string{"document_id", TextVectorField},
		"sort":    []interface{}{map[string]interface{}{"document_id": "asc"}},
		"query":   matchAll(),
	}
}
