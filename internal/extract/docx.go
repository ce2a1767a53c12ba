package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const (
	docxDocumentPath = "word/document.xml"
	docxRelsPath     = "word/_rels/document.xml.rels"
	docxCorePath     = "docProps/core.xml"

	imageRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

// extractDocx reads paragraphs, core properties and related images from a
// .docx archive. It never returns nil.
func extractDocx(ctx context.Context, filePath string) *Extraction {
	result := &Extraction{}

	r, err := zip.OpenReader(filePath)
	if err != nil {
		result.addFault(FaultCorrupt, "", fmt.Errorf("open zip: %w", err))
		return result
	}
	defer r.Close()

	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
	}

	text, err := docxText(files[docxDocumentPath])
	if err != nil {
		result.addFault(FaultPage, docxDocumentPath, err)
	}
	result.Text = text

	readDocxCore(files[docxCorePath], result)

	if ctx.Err() != nil {
		result.addFault(FaultImage, docxRelsPath, ctx.Err())
		return result
	}
	readDocxImages(files, result)

	return result
}

// docxText joins the non-empty paragraphs of word/document.xml with newlines.
func docxText(f *zip.File) (text string, err error) {
	if f == nil {
		return "", errors.New("word/document.xml not found in archive")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("document.xml panic: %v", r)
		}
	}()

	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var paragraphs []string
	// Text boxes nest whole paragraphs inside a run of the outer one, so each
	// open paragraph keeps its own builder.
	var open []*strings.Builder
	inText := false

	closeParagraph := func() {
		top := open[len(open)-1]
		open = open[:len(open)-1]
		if p := strings.TrimSpace(top.String()); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep what was read before the damage.
			for len(open) > 0 {
				closeParagraph()
			}
			return strings.Join(paragraphs, "\n"), fmt.Errorf("parse document.xml: %w", err)
		}

		var current *strings.Builder
		if len(open) > 0 {
			current = open[len(open)-1]
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				open = append(open, &strings.Builder{})
				inText = false
			case "t":
				inText = current != nil
			case "tab":
				if current != nil {
					current.WriteByte(' ')
				}
			case "br", "cr":
				if current != nil {
					current.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if current != nil {
					closeParagraph()
				}
				inText = false
			}
		}
	}

	return strings.Join(paragraphs, "\n"), nil
}

type docxCoreProperties struct {
	Creator  string `xml:"creator"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
}

func readDocxCore(f *zip.File, result *Extraction) {
	if f == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			result.addFault(FaultMetadata, docxCorePath, fmt.Errorf("core.xml panic: %v", r))
		}
	}()

	rc, err := f.Open()
	if err != nil {
		result.addFault(FaultMetadata, docxCorePath, err)
		return
	}
	defer rc.Close()

	var props docxCoreProperties
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
		result.addFault(FaultMetadata, docxCorePath, fmt.Errorf("parse core.xml: %w", err))
		return
	}

	result.Metadata.Author = strings.TrimSpace(props.Creator)

	var errs []string
	for _, candidate := range []struct{ field, value string }{
		{"dcterms:created", props.Created},
		{"dcterms:modified", props.Modified},
	} {
		if strings.TrimSpace(candidate.value) == "" {
			continue
		}
		t, err := parseW3CDate(candidate.value)
		if err == nil {
			result.Metadata.CreatedDate = &t
			return
		}
		errs = append(errs, fmt.Sprintf("%s: %v", candidate.field, err))
	}
	if len(errs) > 0 {
		result.addFault(FaultDate, "dcterms:created", fmt.Errorf("%w: %s", errNoDate, strings.Join(errs, "; ")))
	}
}

var w3cDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseW3CDate parses the W3CDTF timestamps used by OOXML core properties.
func parseW3CDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range w3cDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid W3CDTF date: %q", s)
}

type docxRelationships struct {
	Relationships []docxRelationship `xml:"Relationship"`
}

type docxRelationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// readDocxImages appends the image parts referenced by the document, in the
// order their relationships are declared.
func readDocxImages(files map[string]*zip.File, result *Extraction) {
	relsFile := files[docxRelsPath]
	if relsFile == nil {
		return
	}

	rels, err := readDocxRelationships(relsFile)
	if err != nil {
		result.addFault(FaultImage, docxRelsPath, err)
		return
	}

	index := 0
	for _, rel := range rels.Relationships {
		if rel.Type != imageRelType || strings.EqualFold(rel.TargetMode, "External") {
			continue
		}
		data, name, err := readDocxPart(files, rel.Target)
		if err != nil {
			result.addFault(FaultImage, rel.ID, err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		index++
		result.Images = append(result.Images, RawImage{
			Data:  data,
			Ext:   strings.TrimPrefix(strings.ToLower(path.Ext(name)), "."),
			Index: index,
		})
	}
}

func readDocxRelationships(f *zip.File) (rels docxRelationships, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("document.xml.rels panic: %v", r)
		}
	}()

	rc, err := f.Open()
	if err != nil {
		return rels, fmt.Errorf("open document.xml.rels: %w", err)
	}
	defer rc.Close()

	if err := xml.NewDecoder(rc).Decode(&rels); err != nil {
		return rels, fmt.Errorf("parse document.xml.rels: %w", err)
	}
	return rels, nil
}

// readDocxPart resolves a relationship target relative to word/ and reads it.
func readDocxPart(files map[string]*zip.File, target string) (data []byte, name string, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("image part panic: %v", r)
		}
	}()

	if strings.HasPrefix(target, "/") {
		name = strings.TrimPrefix(target, "/")
	} else {
		name = path.Join("word", target)
	}

	f := files[name]
	if f == nil {
		return nil, name, fmt.Errorf("image part %s not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, name, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	data, err = io.ReadAll(rc)
	if err != nil {
		return nil, name, fmt.Errorf("read %s: %w", name, err)
	}
	return data, name, nil
}
