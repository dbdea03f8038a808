package localmedia

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AICC2024/video-review/internal/platform/ctxutil"
	"github.com/AICC2024/video-review/internal/platform/envutil"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

// Tools wraps the system binaries used to turn review sources into units.
//
// Required in the runtime image:
//   - soffice (LibreOffice) for DOCX/PPTX -> PDF
//   - pdfinfo, pdftoppm, pdftotext (poppler-utils) for paging
//   - ffmpeg, ffprobe for frames, duration and narration audio
type Tools interface {
	AssertReady(ctx context.Context) error
	Workspace(prefix string) (dir string, cleanup func(), err error)

	ConvertOfficeToPDF(ctx context.Context, inputPath string, outDir string) (pdfPath string, err error)
	CountPDFPages(ctx context.Context, pdfPath string) (int, error)
	PDFPageText(ctx context.Context, pdfPath string, page int) (string, error)
	PDFText(ctx context.Context, pdfPath string) (string, error)
	RenderPDFPage(ctx context.Context, pdfPath string, outDir string, page int, opts PDFRenderOptions) (string, error)

	ProbeDuration(ctx context.Context, videoPath string) (float64, error)
	GrabFrame(ctx context.Context, videoPath string, outPath string, atSeconds float64, width int) (string, error)
	ExtractAudioFromVideo(ctx context.Context, videoPath string, outPath string, opts AudioExtractOptions) (string, error)
}

type PDFRenderOptions struct {
	DPI    int
	Format string // "png" or "jpeg"
}

type AudioExtractOptions struct {
	SampleRateHz int
	Channels     int
	Format       string // "wav" or "flac"
}

type tools struct {
	log *logger.Logger

	sofficePath   string
	pdftoppmPath  string
	pdfinfoPath   string
	pdftotextPath string
	ffmpegPath    string
	ffprobePath   string

	workRoot       string
	defaultTimeout time.Duration
}

func New(log *logger.Logger) Tools {
	return &tools{
		log:            log.With("service", "MediaTools"),
		sofficePath:    envutil.String("SOFFICE_PATH", "soffice"),
		pdftoppmPath:   envutil.String("PDFTOPPM_PATH", "pdftoppm"),
		pdfinfoPath:    envutil.String("PDFINFO_PATH", "pdfinfo"),
		pdftotextPath:  envutil.String("PDFTOTEXT_PATH", "pdftotext"),
		ffmpegPath:     envutil.String("FFMPEG_PATH", "ffmpeg"),
		ffprobePath:    envutil.String("FFPROBE_PATH", "ffprobe"),
		workRoot:       envutil.String("MEDIA_WORK_ROOT", filepath.Join(os.TempDir(), "video-review-media")),
		defaultTimeout: envutil.Duration("MEDIA_TOOL_TIMEOUT", 10*time.Minute),
	}
}

func (m *tools) AssertReady(ctx context.Context) error {
	for _, bin := range []string{m.sofficePath, m.pdftoppmPath, m.pdfinfoPath, m.pdftotextPath, m.ffmpegPath, m.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return fmt.Errorf("create workRoot: %w", err)
	}
	return nil
}

func (m *tools) Workspace(prefix string) (string, func(), error) {
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("mkdir workRoot: %w", err)
	}
	dir, err := os.MkdirTemp(m.workRoot, prefix+"-")
	if err != nil {
		return "", func() {}, fmt.Errorf("create workspace: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// run executes bin with the default timeout and returns combined output.
func (m *tools) run(ctx context.Context, timeout time.Duration, bin string, args ...string) ([]byte, error) {
	ctx = ctxutil.Default(ctx)
	if timeout <= 0 {
		timeout = m.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	m.log.Debug("media tool finished", "bin", filepath.Base(bin), "duration_ms", time.Since(start).Milliseconds(), "ok", err == nil)
	if err != nil {
		return out, fmt.Errorf("%s failed: %w; out=%s", filepath.Base(bin), err, truncate(string(out), 2048))
	}
	return out, nil
}

// output is run without stderr mixed in, for tools that print data on stdout.
func (m *tools) output(ctx context.Context, timeout time.Duration, bin string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w; stderr=%s", filepath.Base(bin), err, truncate(stderr.String(), 2048))
	}
	return out, nil
}

func (m *tools) ConvertOfficeToPDF(ctx context.Context, inputPath string, outDir string) (string, error) {
	if inputPath == "" || outDir == "" {
		return "", fmt.Errorf("inputPath and outDir required")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir outDir: %w", err)
	}
	out, err := m.run(ctx, 0, m.sofficePath,
		"--headless", "--nologo", "--nolockcheck", "--nodefault", "--norestore",
		"--convert-to", "pdf",
		"--outdir", outDir,
		inputPath,
	)
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	pdfPath := filepath.Join(outDir, base+".pdf")
	if _, statErr := os.Stat(pdfPath); statErr != nil {
		alt, scanErr := newestFileWithExt(outDir, ".pdf")
		if scanErr != nil {
			return "", fmt.Errorf("pdf output not found at %s: %v; soffice out=%s", pdfPath, scanErr, truncate(string(out), 512))
		}
		pdfPath = alt
	}
	return pdfPath, nil
}

func (m *tools) CountPDFPages(ctx context.Context, pdfPath string) (int, error) {
	if pdfPath == "" {
		return 0, fmt.Errorf("pdfPath required")
	}
	out, err := m.run(ctx, 30*time.Second, m.pdfinfoPath, pdfPath)
	if err != nil {
		return 0, err
	}
	return parsePDFInfoPages(string(out))
}

func (m *tools) PDFPageText(ctx context.Context, pdfPath string, page int) (string, error) {
	if page <= 0 {
		return "", fmt.Errorf("page must be >= 1")
	}
	p := strconv.Itoa(page)
	out, err := m.output(ctx, time.Minute, m.pdftotextPath, "-f", p, "-l", p, "-layout", "-enc", "UTF-8", pdfPath, "-")
	if err != nil {
		return "", err
	}
	return cleanPDFText(string(out)), nil
}

func (m *tools) PDFText(ctx context.Context, pdfPath string) (string, error) {
	out, err := m.output(ctx, 2*time.Minute, m.pdftotextPath, "-layout", "-enc", "UTF-8", pdfPath, "-")
	if err != nil {
		return "", err
	}
	return cleanPDFText(string(out)), nil
}

func (m *tools) RenderPDFPage(ctx context.Context, pdfPath string, outDir string, page int, opts PDFRenderOptions) (string, error) {
	if pdfPath == "" || outDir == "" {
		return "", fmt.Errorf("pdfPath and outDir required")
	}
	if page <= 0 {
		return "", fmt.Errorf("page must be >= 1")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir outDir: %w", err)
	}
	dpi := opts.DPI
	if dpi <= 0 {
		dpi = 150
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "png"
	}
	flag := "-png"
	switch format {
	case "png":
	case "jpeg", "jpg":
		flag = "-jpeg"
	default:
		return "", fmt.Errorf("unsupported render format: %s", format)
	}

	prefix := filepath.Join(outDir, fmt.Sprintf("page_%04d", page))
	p := strconv.Itoa(page)
	out, err := m.run(ctx, 0, m.pdftoppmPath, "-r", strconv.Itoa(dpi), flag, "-f", p, "-l", p, "-singlefile", pdfPath, prefix)
	if err != nil {
		return "", err
	}
	paths, _ := globSorted(outDir, fmt.Sprintf(`^page_%04d(-\d+)?\.(png|jpe?g)$`, page))
	if len(paths) == 0 {
		return "", fmt.Errorf("no image produced by pdftoppm for page %d; out=%s", page, truncate(string(out), 512))
	}
	return paths[0], nil
}

func (m *tools) ProbeDuration(ctx context.Context, videoPath string) (float64, error) {
	out, err := m.output(ctx, time.Minute, m.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	if err != nil {
		return 0, err
	}
	return parseProbeDuration(string(out))
}

func (m *tools) GrabFrame(ctx context.Context, videoPath string, outPath string, atSeconds float64, width int) (string, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir frame dir: %w", err)
	}
	args := []string{"-y", "-ss", strconv.FormatFloat(atSeconds, 'f', 3, 64), "-i", videoPath, "-frames:v", "1"}
	if width > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-2", width))
	}
	args = append(args, outPath)
	if _, err := m.run(ctx, 2*time.Minute, m.ffmpegPath, args...); err != nil {
		return "", err
	}
	if st, err := os.Stat(outPath); err != nil || st.Size() == 0 {
		return "", fmt.Errorf("no frame at %.3fs", atSeconds)
	}
	return outPath, nil
}

func (m *tools) ExtractAudioFromVideo(ctx context.Context, videoPath string, outPath string, opts AudioExtractOptions) (string, error) {
	if videoPath == "" || outPath == "" {
		return "", fmt.Errorf("videoPath and outPath required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir outPath dir: %w", err)
	}
	sr := opts.SampleRateHz
	if sr <= 0 {
		sr = 16000
	}
	ch := opts.Channels
	if ch <= 0 {
		ch = 1
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "flac"
	}
	if format != "wav" && format != "flac" {
		return "", fmt.Errorf("unsupported audio format: %s", format)
	}
	if _, err := m.run(ctx, 0, m.ffmpegPath, "-y", "-i", videoPath, "-vn",
		"-ac", strconv.Itoa(ch), "-ar", strconv.Itoa(sr), "-f", format, outPath); err != nil {
		return "", err
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("audio output missing at %s", outPath)
	}
	return outPath, nil
}

func parsePDFInfoPages(out string) (int, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("pdfinfo pages %q: %w", line, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("pdfinfo output missing Pages field")
}

func parseProbeDuration(out string) (float64, error) {
	raw := strings.TrimSpace(out)
	if i := strings.IndexByte(raw, '\n'); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	if raw == "" || raw == "N/A" {
		return 0, fmt.Errorf("ffprobe reported no duration")
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %q: %w", raw, err)
	}
	return d, nil
}

// cleanPDFText drops form feeds and trailing spaces pdftotext leaves on each line.
func cleanPDFText(s string) string {
	s = strings.ReplaceAll(s, "\f", "")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func newestFileWithExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || strings.ToLower(filepath.Ext(e.Name())) != ext {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, e.Name())
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no %s files in %s", ext, dir)
	}
	return newest, nil
}

func globSorted(dir string, pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, e := range entries {
		if !e.IsDir() && re.MatchString(strings.ToLower(e.Name())) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
