package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/AICC2024/video-review/internal/platform/ctxutil"
	"github.com/AICC2024/video-review/internal/platform/envutil"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

// Document runs a Document AI processor over raw document bytes.
type Document interface {
	ProcessBytes(ctx context.Context, data []byte, mimeType string) (*DocAIResult, error)
	Close() error
}

type DocAIResult struct {
	Processor string   `json:"processor"`
	Text      string   `json:"text"`
	Pages     []string `json:"pages,omitempty"`
	Tables    []string `json:"tables,omitempty"`
}

type DocAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
}

func DocAIConfigFromEnv() DocAIConfig {
	project := envutil.String("DOCUMENTAI_PROJECT_ID", "")
	if project == "" {
		project = envutil.String("GOOGLE_CLOUD_PROJECT", "")
	}
	return DocAIConfig{
		ProjectID:        project,
		Location:         envutil.String("DOCUMENTAI_LOCATION", "us"),
		ProcessorID:      envutil.String("DOCUMENTAI_PROCESSOR_ID", ""),
		ProcessorVersion: envutil.String("DOCUMENTAI_PROCESSOR_VERSION", ""),
	}
}

// Enabled reports whether a processor is fully named.
func (c DocAIConfig) Enabled() bool {
	return processorName(c.ProjectID, c.Location, c.ProcessorID, c.ProcessorVersion) != ""
}

type documentService struct {
	log        *logger.Logger
	client     *documentai.DocumentProcessorClient
	processor  string
	maxRetries int
}

func NewDocument(log *logger.Logger, cfg DocAIConfig) (Document, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	name := processorName(cfg.ProjectID, cfg.Location, cfg.ProcessorID, cfg.ProcessorVersion)
	if name == "" {
		return nil, fmt.Errorf("documentai: project, location and processor id are required")
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, ClientOptionsFromEnv()...)
	c, err := documentai.NewDocumentProcessorClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	slog := log.With("service", "gcp.Document")
	slog.Info("Document AI initialized", "endpoint", endpoint, "processor", name)
	return &documentService{log: slog, client: c, processor: name, maxRetries: 3}, nil
}

func (s *documentService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *documentService) ProcessBytes(ctx context.Context, data []byte, mimeType string) (*DocAIResult, error) {
	if len(data) == 0 {
		return &DocAIResult{Processor: s.processor}, nil
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 3*time.Minute)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: s.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: data, MimeType: mimeType},
		},
	}
	resp, err := retryGRPC(ctx, s.maxRetries, func() (*documentaipb.ProcessResponse, error) {
		return s.client.ProcessDocument(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	return buildDocAIResult(resp.GetDocument(), s.processor), nil
}

func buildDocAIResult(doc *documentaipb.Document, processor string) *DocAIResult {
	out := &DocAIResult{Processor: processor}
	if doc == nil {
		return out
	}
	out.Text = strings.TrimSpace(doc.Text)
	for _, p := range doc.Pages {
		if p == nil {
			continue
		}
		var page strings.Builder
		for _, para := range p.Paragraphs {
			t := strings.TrimSpace(textFromAnchor(doc.Text, para.GetLayout().GetTextAnchor()))
			if t == "" {
				continue
			}
			page.WriteString(t)
			page.WriteString("\n")
		}
		out.Pages = append(out.Pages, strings.TrimSpace(page.String()))
		for _, table := range p.Tables {
			if md := strings.TrimSpace(tableToMarkdown(doc.Text, table)); md != "" {
				out.Tables = append(out.Tables, md)
			}
		}
	}
	return out
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start := max(int(seg.StartIndex), 0)
		end := min(int(seg.EndIndex), len(full))
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func tableToMarkdown(full string, t *documentaipb.Document_Page_Table) string {
	if t == nil {
		return ""
	}
	rows := [][]string{}
	for _, r := range t.HeaderRows {
		rows = append(rows, tableRowToCells(full, r))
	}
	for _, r := range t.BodyRows {
		rows = append(rows, tableRowToCells(full, r))
	}
	if len(rows) == 0 {
		return ""
	}
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return ""
	}
	var out strings.Builder
	writeRow := func(cells []string) {
		for len(cells) < cols {
			cells = append(cells, "")
		}
		out.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	writeRow(rows[0])
	sep := make([]string, cols)
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for _, r := range rows[1:] {
		writeRow(r)
	}
	return out.String()
}

func tableRowToCells(full string, r *documentaipb.Document_Page_Table_TableRow) []string {
	out := make([]string, 0, len(r.GetCells()))
	for _, c := range r.GetCells() {
		cell := strings.TrimSpace(textFromAnchor(full, c.GetLayout().GetTextAnchor()))
		out = append(out, strings.ReplaceAll(cell, "|", "\\|"))
	}
	return out
}

func processorName(project, location, processorID, version string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	if project == "" || location == "" || processorID == "" {
		return ""
	}
	base := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
	if v := strings.TrimSpace(version); v != "" {
		return base + "/processorVersions/" + v
	}
	return base
}
