package pipeline

import (
	"context"
	"os"
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

// FileTextSource reads pre-extracted text files from disk. Upstream OCR
// tooling writes one file per document, using form feeds as page breaks.
type FileTextSource struct{}

func NewFileTextSource() *FileTextSource { return &FileTextSource{} }

func (s *FileTextSource) ExtractPages(_ context.Context, path string) ([]PageText, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewAppError("TEXT_READ", "failed to read document text", err)
	}

	var pages []PageText
	for i, chunk := range strings.Split(string(data), "\f") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		pages = append(pages, PageText{Number: i + 1, Content: chunk})
	}
	return pages, nil
}
