package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AICC2024/video-review/internal/domain/review"
	"github.com/AICC2024/video-review/internal/platform/envutil"
	"github.com/AICC2024/video-review/internal/platform/gcp"
	"github.com/AICC2024/video-review/internal/platform/localmedia"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/reviewerr"
)

// Deps are the collaborators an Extractor reads sources with. Tools is
// required; the rest are optional and disable their feature when nil.
type Deps struct {
	Tools       localmedia.Tools
	Bucket      gcp.BucketService
	HTTP        *http.Client
	OCR         gcp.Vision
	DocAI       gcp.Document
	Transcriber Transcriber
}

type Options struct {
	SampleEvery  int // seconds between video frames
	DPI          int
	FrameWidth   int
	MaxImageEdge int
}

func OptionsFromEnv() Options {
	return Options{
		SampleEvery:  envutil.Int("REVIEW_VIDEO_SAMPLE_SECONDS", VideoSampleEvery),
		DPI:          envutil.Int("REVIEW_PAGE_DPI", 150),
		FrameWidth:   envutil.Int("REVIEW_FRAME_WIDTH", 1280),
		MaxImageEdge: envutil.Int("REVIEW_MAX_IMAGE_EDGE", 1600),
	}
}

type Extractor struct {
	log         *logger.Logger
	tools       localmedia.Tools
	bucket      gcp.BucketService
	http        *http.Client
	ocr         gcp.Vision
	docai       gcp.Document
	transcriber Transcriber
	opts        Options
}

func New(log *logger.Logger, deps Deps, opts Options) *Extractor {
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{Timeout: 5 * time.Minute}
	}
	if opts.SampleEvery <= 0 {
		opts.SampleEvery = VideoSampleEvery
	}
	if opts.DPI <= 0 {
		opts.DPI = 150
	}
	return &Extractor{
		log:         log.With("component", "UnitExtractor"),
		tools:       deps.Tools,
		bucket:      deps.Bucket,
		http:        deps.HTTP,
		ocr:         deps.OCR,
		docai:       deps.DocAI,
		transcriber: deps.Transcriber,
		opts:        opts,
	}
}

// Extract prepares the asset and returns its units. Any error here is an
// *reviewerr.ExtractionError and is fatal for the job.
func (e *Extractor) Extract(ctx context.Context, src Source, kind review.MediaKind) (*UnitSeq, error) {
	dir, cleanup, err := e.tools.Workspace("review-")
	if err != nil {
		return nil, reviewerr.Extraction("workspace", err)
	}
	var seq *UnitSeq
	switch {
	case kind.Paged():
		seq, err = e.pages(ctx, src, dir, cleanup)
	case kind == review.MediaVideo:
		seq, err = e.frames(ctx, src, dir, cleanup)
	default:
		err = reviewerr.Extraction("media_kind", fmt.Errorf("unsupported media kind %q", kind))
	}
	if err != nil {
		cleanup()
		return nil, reviewerr.Extraction("extract", err)
	}
	e.log.Debug("units ready", "source", src.String(), "media_kind", kind, "units", seq.Total())
	return seq, nil
}

func (e *Extractor) pages(ctx context.Context, src Source, dir string, cleanup func()) (*UnitSeq, error) {
	pdf, err := e.preparePDF(ctx, src, dir)
	if err != nil {
		return nil, err
	}
	n, err := e.tools.CountPDFPages(ctx, pdf)
	if err != nil {
		return nil, reviewerr.Extraction("count_pages", err)
	}
	if n <= 0 {
		return nil, reviewerr.Extraction("count_pages", errors.New("document has no pages"))
	}
	indexes := make([]int, n)
	for i := range indexes {
		indexes[i] = i + 1
	}

	render := func(ctx context.Context, _ int, page int) (Unit, error) {
		text, err := e.tools.PDFPageText(ctx, pdf, page)
		if err != nil {
			e.log.Warn("page text failed", "page", page, "error", err)
			text = ""
		}
		img, mime, err := e.renderPage(ctx, pdf, dir, page)
		if err != nil {
			return Unit{Text: text}, fmt.Errorf("render page %d: %w", page, err)
		}
		if strings.TrimSpace(text) == "" && e.ocr != nil {
			if res, err := e.ocr.OCRImageBytes(ctx, img); err != nil {
				e.log.Warn("page ocr failed", "page", page, "error", err)
			} else {
				text = res.Text
			}
		}
		return Unit{Text: strings.TrimSpace(text), Image: img, ImageMIME: mime}, nil
	}
	return NewUnitSeq(indexes, render, cleanup), nil
}

func (e *Extractor) frames(ctx context.Context, src Source, dir string, cleanup func()) (*UnitSeq, error) {
	local, err := e.materialize(ctx, src, dir)
	if err != nil {
		return nil, reviewerr.Extraction("download", err)
	}
	dur, err := e.tools.ProbeDuration(ctx, local)
	if err != nil {
		return nil, reviewerr.Extraction("probe", err)
	}
	offsets := SampleOffsets(dur, e.opts.SampleEvery)
	if len(offsets) == 0 {
		return nil, reviewerr.Extraction("probe", fmt.Errorf("video too short: %.2fs", dur))
	}
	narration := e.narration(ctx, src, local, dir, len(offsets))

	render := func(ctx context.Context, pos int, ts int) (Unit, error) {
		text := narration[pos]
		out := filepath.Join(dir, "frames", fmt.Sprintf("frame_%06d.jpg", ts))
		if _, err := e.tools.GrabFrame(ctx, local, out, float64(ts), e.opts.FrameWidth); err != nil {
			return Unit{Text: text}, fmt.Errorf("grab frame at %ds: %w", ts, err)
		}
		raw, err := os.ReadFile(out)
		if err != nil {
			return Unit{Text: text}, err
		}
		img, mime, err := fitImage(raw, e.opts.MaxImageEdge)
		if err != nil {
			return Unit{Text: text}, err
		}
		return Unit{Text: text, Image: img, ImageMIME: mime}, nil
	}
	return NewUnitSeq(offsets, render, cleanup), nil
}

// narration never fails the job; a missing transcript leaves every snippet empty.
func (e *Extractor) narration(ctx context.Context, src Source, local, dir string, units int) []string {
	if e.transcriber == nil {
		return make([]string, units)
	}
	in := TranscriptInput{LocalPath: local, WorkDir: dir}
	if key := strings.TrimSpace(src.StorageKey); key != "" && e.bucket != nil {
		in.GCSURI = e.bucket.GCSURI(key)
	}
	tr, err := e.transcriber.Transcribe(ctx, in)
	if err != nil {
		e.log.Warn("transcription failed; narration left empty", "source", src.String(), "error", err)
		return make([]string, units)
	}
	return SplitNarration(tr.Text, units)
}

// Transcript downloads a video and transcribes it on demand. It returns
// ErrTranscriptUnavailable when no transcriber can handle the source.
func (e *Extractor) Transcript(ctx context.Context, src Source) (*gcp.Transcript, error) {
	if e.transcriber == nil {
		return nil, ErrTranscriptUnavailable
	}
	dir, cleanup, err := e.tools.Workspace("transcript-")
	if err != nil {
		return nil, reviewerr.Extraction("workspace", err)
	}
	defer cleanup()

	local, err := e.materialize(ctx, src, dir)
	if err != nil {
		return nil, reviewerr.Extraction("download", err)
	}
	in := TranscriptInput{LocalPath: local, WorkDir: dir}
	if key := strings.TrimSpace(src.StorageKey); key != "" && e.bucket != nil {
		in.GCSURI = e.bucket.GCSURI(key)
	}
	tr, err := e.transcriber.Transcribe(ctx, in)
	if err != nil {
		return nil, err
	}
	e.log.Debug("transcript ready", "source", src.String(), "provider", tr.Provider, "segments", len(tr.Segments))
	return tr, nil
}

func (e *Extractor) preparePDF(ctx context.Context, src Source, dir string) (string, error) {
	local, err := e.materialize(ctx, src, dir)
	if err != nil {
		return "", reviewerr.Extraction("download", err)
	}
	ext := src.Ext()
	switch {
	case ext == ".pdf" || ext == "":
		return local, nil
	case isOfficeExt(ext):
		pdf, err := e.tools.ConvertOfficeToPDF(ctx, local, filepath.Join(dir, "converted"))
		if err != nil {
			return "", reviewerr.Extraction("convert", err)
		}
		return pdf, nil
	default:
		return "", reviewerr.Extraction("convert", fmt.Errorf("unsupported document type %q", ext))
	}
}

func (e *Extractor) renderPage(ctx context.Context, pdf, dir string, page int) ([]byte, string, error) {
	out, err := e.tools.RenderPDFPage(ctx, pdf, filepath.Join(dir, "pages"), page, localmedia.PDFRenderOptions{
		DPI:    e.opts.DPI,
		Format: "png",
	})
	if err != nil {
		return nil, "", err
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		return nil, "", err
	}
	return fitImage(raw, e.opts.MaxImageEdge)
}

// DocumentText returns the full text of a document for whole-asset review,
// falling back to Document AI when the text layer is empty.
func (e *Extractor) DocumentText(ctx context.Context, src Source) (string, error) {
	dir, cleanup, err := e.tools.Workspace("doctext-")
	if err != nil {
		return "", reviewerr.Extraction("workspace", err)
	}
	defer cleanup()

	switch src.Ext() {
	case ".txt", ".md":
		local, err := e.materialize(ctx, src, dir)
		if err != nil {
			return "", reviewerr.Extraction("download", err)
		}
		raw, err := os.ReadFile(local)
		if err != nil {
			return "", reviewerr.Extraction("read", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	pdf, err := e.preparePDF(ctx, src, dir)
	if err != nil {
		return "", err
	}
	text, err := e.tools.PDFText(ctx, pdf)
	if err != nil {
		e.log.Warn("pdftotext failed", "source", src.String(), "error", err)
		text = ""
	}
	if strings.TrimSpace(text) == "" && e.docai != nil {
		raw, err := os.ReadFile(pdf)
		if err != nil {
			return "", reviewerr.Extraction("read", err)
		}
		res, err := e.docai.ProcessBytes(ctx, raw, "application/pdf")
		if err != nil {
			return "", reviewerr.Extraction("document_ai", err)
		}
		text = res.Text
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", reviewerr.Extraction("document_text", errors.New("document has no text"))
	}
	return text, nil
}

// RenderPage renders one page of a paged source.
func (e *Extractor) RenderPage(ctx context.Context, src Source, page int) ([]byte, string, error) {
	dir, cleanup, err := e.tools.Workspace("page-")
	if err != nil {
		return nil, "", reviewerr.Extraction("workspace", err)
	}
	defer cleanup()

	pdf, err := e.preparePDF(ctx, src, dir)
	if err != nil {
		return nil, "", err
	}
	n, err := e.tools.CountPDFPages(ctx, pdf)
	if err != nil {
		return nil, "", reviewerr.Extraction("count_pages", err)
	}
	if page < 1 || page > n {
		return nil, "", reviewerr.Extraction("render", fmt.Errorf("page %d out of range (1..%d)", page, n))
	}
	img, mime, err := e.renderPage(ctx, pdf, dir, page)
	if err != nil {
		return nil, "", reviewerr.Extraction("render", err)
	}
	return img, mime, nil
}
