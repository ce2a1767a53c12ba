package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDF reads a PDF page by page. It never returns nil.
func extractPDF(ctx context.Context, path string) *Extraction {
	result := &Extraction{}

	pdfCtx, fault := openPDF(path)
	if fault != nil {
		result.Faults = append(result.Faults, *fault)
		return result
	}

	readPDFMetadata(pdfCtx, result)

	var text strings.Builder
	imageIndex := 0
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if ctx.Err() != nil {
			result.addFault(FaultPage, fmt.Sprintf("page %d", pageNr), ctx.Err())
			break
		}

		pageText, err := pdfPageText(pdfCtx, pageNr)
		if err != nil {
			result.addFault(FaultPage, fmt.Sprintf("page %d", pageNr), err)
		} else if pageText != "" {
			if text.Len() > 0 {
				text.WriteByte('\n')
			}
			text.WriteString(pageText)
		}

		images, err := pdfPageImages(pdfCtx, pageNr)
		if err != nil {
			result.addFault(FaultImage, fmt.Sprintf("page %d", pageNr), err)
			continue
		}
		for _, img := range images {
			imageIndex++
			img.Index = imageIndex
			result.Images = append(result.Images, img)
		}
	}

	result.Text = strings.TrimSpace(text.String())
	return result
}

// openPDF reads and validates the document, decrypting it with an empty user
// password when it is encrypted.
func openPDF(path string) (pdfCtx *model.Context, fault *Fault) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Fault{Kind: FaultCorrupt, Err: err}
	}
	defer f.Close()

	defer func() {
		if r := recover(); r != nil {
			pdfCtx = nil
			fault = &Fault{Kind: FaultCorrupt, Err: fmt.Errorf("pdf parser panic: %v", r)}
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.UserPW = ""

	pdfCtx, err = api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		// pdfcpu reports decryption failures only through the error text.
		if strings.Contains(strings.ToLower(err.Error()), "password") {
			return nil, &Fault{Kind: FaultEncrypted, Err: fmt.Errorf("%w: %v", errPasswordProtected, err)}
		}
		return nil, &Fault{Kind: FaultCorrupt, Err: fmt.Errorf("pdfcpu read: %w", err)}
	}
	return pdfCtx, nil
}

func readPDFMetadata(pdfCtx *model.Context, result *Extraction) {
	defer func() {
		if r := recover(); r != nil {
			result.addFault(FaultMetadata, "Info", fmt.Errorf("pdf info panic: %v", r))
		}
	}()

	result.Metadata.Author = strings.TrimSpace(pdfCtx.Author)

	created, fault := documentDate(pdfCtx.CreationDate, pdfCtx.ModDate)
	if fault != nil {
		result.Faults = append(result.Faults, *fault)
	}
	result.Metadata.CreatedDate = created
}

// pdfPageText extracts the text shown on one page, decoding strings through
// the fonts of the page resources.
func pdfPageText(pdfCtx *model.Context, pageNr int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page content panic: %v", r)
		}
	}()

	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return textFromContentStream(data, pageFonts(pdfCtx, pageNr)), nil
}

// pdfPageImages returns the images of one page ordered by object number.
func pdfPageImages(pdfCtx *model.Context, pageNr int) (images []RawImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			images, err = nil, fmt.Errorf("page images panic: %v", r)
		}
	}()

	byObj, err := pdfcpu.ExtractPageImages(pdfCtx, pageNr, false)
	if err != nil {
		return nil, err
	}

	objNrs := make([]int, 0, len(byObj))
	for objNr := range byObj {
		objNrs = append(objNrs, objNr)
	}
	sort.Ints(objNrs)

	for _, objNr := range objNrs {
		img := byObj[objNr]
		if img.Reader == nil {
			continue
		}
		data, err := io.ReadAll(img)
		if err != nil || len(data) == 0 {
			continue
		}
		images = append(images, RawImage{
			Data: data,
			Ext:  strings.TrimPrefix(strings.ToLower(img.FileType), "."),
			Page: pageNr,
		})
	}
	return images, nil
}
