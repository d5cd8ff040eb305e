package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
)

// maxDocumentBytes caps documents at the Vision API synchronous limit.
const maxDocumentBytes = 20 * 1024 * 1024

// VisionExtractor implements Service using Google Cloud Vision document OCR.
// Credentials come from the environment (GOOGLE_APPLICATION_CREDENTIALS or
// application default credentials).
type VisionExtractor struct {
	client *vision.ImageAnnotatorClient
}

func NewVisionExtractor(ctx context.Context) (*VisionExtractor, error) {
	client, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}
	return &VisionExtractor{client: client}, nil
}

// NewVisionExtractorWithClient wires an explicit client, for tests.
func NewVisionExtractorWithClient(client *vision.ImageAnnotatorClient) *VisionExtractor {
	return &VisionExtractor{client: client}
}

// Text runs synchronous document text detection over the PDF and returns the
// concatenated text of all pages in reading order.
func (v *VisionExtractor) Text(ctx context.Context, doc io.Reader) (string, error) {
	const op = "Text"

	data, err := io.ReadAll(doc)
	if err != nil {
		return "", wrap(op, fmt.Errorf("read document: %w", err))
	}
	if len(data) > maxDocumentBytes {
		return "", wrap(op, ErrTooLarge)
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return "", wrap(op, ErrUnreadable)
	}

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{
				Content:  data,
				MimeType: "application/pdf",
			},
			Features: []*visionpb.Feature{{
				Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION,
			}},
		}},
	}

	resp, err := v.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return "", wrap(op, fmt.Errorf("vision api: %w", err))
	}
	if len(resp.Responses) == 0 {
		return "", wrap(op, ErrUnreadable)
	}
	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return "", wrap(op, fmt.Errorf("vision api: %s", fileResp.Error.Message))
	}

	var text strings.Builder
	for _, page := range fileResp.Responses {
		if page.Error != nil {
			return "", wrap(op, fmt.Errorf("page annotation: %s", page.Error.Message))
		}
		if page.FullTextAnnotation != nil {
			text.WriteString(page.FullTextAnnotation.Text)
			text.WriteString("\n")
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return "", wrap(op, ErrEmptyDocument)
	}

	slog.DebugContext(ctx, "Document text extracted",
		"bytes", len(data),
		"pages", len(fileResp.Responses),
		"text_len", text.Len())

	return text.String(), nil
}

func (v *VisionExtractor) Close() error {
	return v.client.Close()
}
