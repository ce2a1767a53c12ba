package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// FileType identifies a supported source format.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
)

// Document is the unit of indexing and retrieval.
type Document struct {
	DocumentID     string    `json:"document_id"`
	Title          string    `json:"title"`
	TextContent    string    `json:"text_content"`
	TextEmbedding  []float32 `json:"text_embedding,omitempty"`
	ImageEmbedding []float32 `json:"image_embedding,omitempty"` // Mean of the kept image embeddings
	Metadata       Metadata  `json:"metadata"`
	Images         []Image   `json:"images"`
}

// Metadata holds document-level attributes.
type Metadata struct {
	Author      *string  `json:"author"`
	CreatedDate *Date    `json:"created_date"`
	Tags        []string `json:"tags"`
	FileType    FileType `json:"file_type"`
}

// Image is an embedded image that was judged to carry text.
type Image struct {
	ImageID        string    `json:"image_id"`
	OCRText        string    `json:"ocr_text"`
	ImageEmbedding []float32 `json:"image_embedding,omitempty"`
	Position       string    `json:"position"` // "page N" or "image N"
	ImagePath      string    `json:"image_path"`
}

// DateLayout is the ISO calendar date layout used for created_date.
const DateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date.
func NewDate(t time.Time) *Date {
	y, m, d := t.Date()
	return &Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts YYYY-MM-DD and RFC 3339 timestamps.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	*d = *NewDate(t)
	return nil
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
