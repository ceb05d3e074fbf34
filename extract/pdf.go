package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/kbot/core"
)

// pageSource is the subset of a parsed PDF the extractor needs.
type pageSource interface {
	NumPage() int
	// PageText returns the plain text of the 1-based page num.
	// ok is false when the page has no content object.
	PageText(num int) (text string, ok bool, err error)
}

type pdfReader struct {
	r *pdf.Reader
}

func (p pdfReader) NumPage() int {
	return p.r.NumPage()
}

func (p pdfReader) PageText(num int) (string, bool, error) {
	page := p.r.Page(num)
	if page.V.IsNull() {
		return "", false, nil
	}
	text, err := page.GetPlainText(nil)
	return text, true, err
}

func (e *Extractor) extractPDF(content []byte) (text string, err error) {
	// The parser panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed PDF: %v", core.ErrExtraction, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: open PDF: %v", core.ErrExtraction, err)
	}
	return e.joinPages(pdfReader{r: r}), nil
}

// joinPages concatenates page texts in order, each followed by a newline.
// Pages that yield no text contribute only the newline.
func (e *Extractor) joinPages(src pageSource) string {
	var buf strings.Builder
	for num := 1; num <= src.NumPage(); num++ {
		text, ok, err := src.PageText(num)
		switch {
		case err != nil:
			e.logger.Warn("skipping unreadable PDF page", "page", num, "err", err)
			text = ""
		case !ok:
			e.logger.Debug("skipping empty PDF page", "page", num)
		}
		buf.WriteString(text)
		buf.WriteByte('\n')
	}
	return buf.String()
}
