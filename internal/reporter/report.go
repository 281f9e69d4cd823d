package reporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/yuin/goldmark"
)

// ReportingConfig holds the configuration for report files
type ReportingConfig struct {
	Format    []string
	OutputDir string
	// Detailed includes passing assertions in the HTML report.
	Detailed bool
}

// Writer persists recorded reports to the output directory.
type Writer struct {
	config   ReportingConfig
	markdown goldmark.Markdown
}

// NewWriter creates a new instance of Writer
func NewWriter(config ReportingConfig) *Writer {
	return &Writer{
		config:   config,
		markdown: goldmark.New(),
	}
}

// Write emits the report in every configured file format and returns the
// paths written. The output directory is locked while writing so concurrent
// runs sharing it do not interleave.
func (w *Writer) Write(report *Report) ([]string, error) {
	var formats []string
	for _, f := range w.config.Format {
		if f == "json" || f == "html" {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(w.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	lock := flock.New(filepath.Join(w.config.OutputDir, ".report.lock"))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock report directory: %w", err)
	}
	defer lock.Unlock()

	stamp := report.StartedAt.Format("20060102_150405")
	if id := report.ID; id != "" {
		if len(id) > 8 {
			id = id[:8]
		}
		stamp += "_" + id
	}
	var written []string
	for _, format := range formats {
		var (
			data []byte
			err  error
		)
		switch format {
		case "json":
			data, err = json.MarshalIndent(report, "", "  ")
		case "html":
			data, err = w.HTML(report)
		}
		if err != nil {
			return written, fmt.Errorf("failed to generate %s report: %w", strings.ToUpper(format), err)
		}

		path := filepath.Join(w.config.OutputDir, fmt.Sprintf("report_%s.%s", stamp, format))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// HTML renders the report as a standalone HTML page.
func (w *Writer) HTML(report *Report) ([]byte, error) {
	var body bytes.Buffer
	if err := w.markdown.Convert(Markdown(report, w.config.Detailed), &body); err != nil {
		return nil, err
	}
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Contract test report</title>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// Markdown renders the report as a Markdown document. Passing assertions are
// listed only when detailed is set.
func Markdown(report *Report, detailed bool) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Contract test report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", report.ID)
	if report.Target != "" {
		fmt.Fprintf(&b, "- Target: %s\n", markdownEscape(report.Target))
	}
	fmt.Fprintf(&b, "- Started: %s\n", report.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- Duration: %s\n", report.Duration)
	fmt.Fprintf(&b, "- Passed: %d\n- Failed: %d\n\n", report.Passed, report.Failed)

	writeAssertions(&b, report.Assertions, detailed)
	for _, g := range report.Groups {
		writeGroup(&b, g, 2, detailed)
	}
	return b.Bytes()
}

func writeGroup(b *bytes.Buffer, g *Group, level int, detailed bool) {
	if level > 6 {
		level = 6
	}
	status := "passed"
	if g.Failed > 0 {
		status = fmt.Sprintf("%d failed", g.Failed)
	}
	fmt.Fprintf(b, "%s %s (%s)\n\n", strings.Repeat("#", level), markdownEscape(g.Name), status)
	writeAssertions(b, g.Assertions, detailed)
	for _, child := range g.Groups {
		writeGroup(b, child, level+1, detailed)
	}
}

func writeAssertions(b *bytes.Buffer, assertions []Assertion, detailed bool) {
	wrote := false
	for _, a := range assertions {
		switch {
		case !a.Passed && a.Detail != "":
			fmt.Fprintf(b, "- ✗ %s: `%s`\n", markdownEscape(a.Name), codeSpan(a.Detail))
		case !a.Passed:
			fmt.Fprintf(b, "- ✗ %s\n", markdownEscape(a.Name))
		case detailed:
			fmt.Fprintf(b, "- ✓ %s\n", markdownEscape(a.Name))
		default:
			continue
		}
		wrote = true
	}
	if wrote {
		b.WriteString("\n")
	}
}

var (
	markdownReplacer = strings.NewReplacer("*", `\*`, "_", `\_`, "<", "&lt;", ">", "&gt;", "[", `\[`, "]", `\]`)
	codeSpanReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "`", "'")
)

// codeSpan flattens detail onto one line that fits in a backtick code span.
func codeSpan(detail string) string {
	return codeSpanReplacer.Replace(detail)
}

func markdownEscape(s string) string {
	return markdownReplacer.Replace(s)
}
