package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Aman-CERP/assetcache/internal/asset"
	"github.com/Aman-CERP/assetcache/internal/async"
)

// Renderer writes human or JSON output for CLI commands.
type Renderer struct {
	out    io.Writer
	styles Styles
}

// NewRenderer creates a renderer. Colors are disabled when noColor is set.
func NewRenderer(out io.Writer, noColor bool) *Renderer {
	return &Renderer{out: out, styles: GetStyles(noColor)}
}

// RenderImport displays the outcome of one import.
func (r *Renderer) RenderImport(s async.ImportProgressSnapshot) {
	_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Header.Render("Imported "+s.Root))
	r.field("Status", r.renderStatus(s.Status))
	r.field("Discovered", fmt.Sprintf("%d", s.FilesDiscovered))
	r.field("Enriched", fmt.Sprintf("%d", s.FilesEnriched))
	if s.FilesFailed > 0 {
		r.field("Failed", r.styles.Warning.Render(fmt.Sprintf("%d", s.FilesFailed)))
	}
	r.field("Evicted", fmt.Sprintf("%d", s.Evicted))
	r.field("Elapsed", formatDuration(time.Duration(s.ElapsedSeconds*float64(time.Second))))
	if s.ErrorMessage != "" {
		r.field("Error", r.styles.Error.Render(s.ErrorMessage))
	}
}

// RenderAssets lists assets one per line: uri, size, media type, digest.
func (r *Renderer) RenderAssets(assets []*asset.Asset) {
	for _, a := range assets {
		_, _ = fmt.Fprintf(r.out, "  %s  %s  %s  %s\n",
			a.URI,
			r.styles.Label.Render(sizeOf(a)),
			r.styles.Value.Render(deref(a.MediaType)),
			r.styles.Dim.Render(deref(a.Digest)))
	}
}

// RenderFolders lists folders with their file counts.
func (r *Renderer) RenderFolders(folders []*asset.Folder) {
	for _, f := range folders {
		count := "-"
		if f.FileCount != nil {
			count = fmt.Sprintf("%d files", *f.FileCount)
		}
		_, _ = fmt.Fprintf(r.out, "  %s  %s\n", f.URI, r.styles.Label.Render(count))
	}
}

// RenderSweep displays the result of a reconciliation pass.
func (r *Renderer) RenderSweep(checked, evicted, unreadable int, d time.Duration) {
	_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Header.Render("Sweep complete"))
	r.field("Checked", fmt.Sprintf("%d", checked))
	r.field("Evicted", fmt.Sprintf("%d", evicted))
	if unreadable > 0 {
		r.field("Unreadable", r.styles.Warning.Render(fmt.Sprintf("%d", unreadable)))
	}
	r.field("Elapsed", formatDuration(d))
}

// RenderJSON writes v as indented JSON.
func (r *Renderer) RenderJSON(v any) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (r *Renderer) field(label, value string) {
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.styles.Label.Render(fmt.Sprintf("%-11s", label+":")), value)
}

func (r *Renderer) renderStatus(status string) string {
	switch async.ImportStatus(status) {
	case async.StatusReady:
		return r.styles.Success.Render(status)
	case async.StatusImporting:
		return r.styles.Warning.Render(status)
	case async.StatusError:
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

func sizeOf(a *asset.Asset) string {
	if a.Size == nil {
		return "-"
	}
	return FormatBytes(*a.Size)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
