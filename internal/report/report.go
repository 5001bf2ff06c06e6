// Package report renders a finished crawl run as a terminal summary and as
// markdown/HTML artifacts under the data directory.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/echoVic/aidayhot-crawler/internal/pipeline"
)

// Summary renders the human-readable run summary printed after every crawl,
// successful or not.
func Summary(stats *pipeline.RunStats) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\nCrawl finished in %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  fetched: %d  saved: %d  errors: %d\n",
		stats.Total, stats.Success, stats.Errors)

	for _, name := range sortedSources(stats) {
		ss := stats.PerSource[name]
		line := fmt.Sprintf("  %-18s fetched %3d  inserted %3d  updated %3d",
			name, ss.Fetched, ss.Inserted, ss.Updated)
		if ss.MockData {
			line += "  (mock)"
		}
		if ss.Err != "" {
			line += "  error: " + ss.Err
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// Markdown renders the run as a markdown document.
func Markdown(stats *pipeline.RunStats) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Crawl Run %s\n\n", stats.StartedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Duration: %s\n\n", stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Fetched | %d |\n", stats.Total)
	fmt.Fprintf(&b, "| Saved | %d |\n", stats.Success)
	fmt.Fprintf(&b, "| Errors | %d |\n", stats.Errors)
	fmt.Fprintf(&b, "| Save errors | %d |\n\n", stats.SaveErrors)

	b.WriteString("## Sources\n\n")
	b.WriteString("| Source | Fetched | Inserted | Updated | Errors | Notes |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, name := range sortedSources(stats) {
		ss := stats.PerSource[name]
		notes := ss.Err
		if ss.MockData {
			if notes != "" {
				notes += "; "
			}
			notes += "mock data"
		}
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %s |\n",
			name, ss.Fetched, ss.Inserted, ss.Updated, ss.Errors, notes)
	}
	return b.String()
}

// WriteArtifacts writes run-<date>.md and run-<date>.html into dir and
// returns the markdown path.
func WriteArtifacts(dir string, stats *pipeline.RunStats) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}

	stamp := stats.StartedAt.Format("2006-01-02T15-04-05")
	md := Markdown(stats)

	mdPath := filepath.Join(dir, "run-"+stamp+".md")
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("writing markdown report: %w", err)
	}

	html, err := renderHTML(md)
	if err != nil {
		return mdPath, fmt.Errorf("rendering html report: %w", err)
	}
	htmlPath := filepath.Join(dir, "run-"+stamp+".html")
	if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
		return mdPath, fmt.Errorf("writing html report: %w", err)
	}
	return mdPath, nil
}

func renderHTML(md string) ([]byte, error) {
	converter := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Crawl Run</title></head><body>\n")
	if err := converter.Convert([]byte(md), &buf); err != nil {
		return nil, err
	}
	buf.WriteString("</body></html>\n")
	return buf.Bytes(), nil
}

func sortedSources(stats *pipeline.RunStats) []string {
	names := make([]string, 0, len(stats.PerSource))
	for name := range stats.PerSource {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
