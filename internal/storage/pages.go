package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// PageWriter saves the raw markup of fetched pages and of pages that
// stopped a search.
type PageWriter struct {
	htmlPath string
	debugDir string
	logger   *slog.Logger
}

// NewPageWriter creates a PageWriter. htmlPath is the base file name,
// page n is written next to it as "<name>_page<n><ext>".
func NewPageWriter(htmlPath, debugDir string, logger *slog.Logger) *PageWriter {
	return &PageWriter{
		htmlPath: htmlPath,
		debugDir: debugDir,
		logger:   logger.With("component", "page_writer"),
	}
}

// PagePath returns the file holding page n.
func (w *PageWriter) PagePath(n int) string {
	ext := filepath.Ext(w.htmlPath)
	stem := strings.TrimSuffix(w.htmlPath, ext)
	return fmt.Sprintf("%s_page%d%s", stem, n, ext)
}

// SavePage writes page n. Page 1 is mirrored to the base path as well.
func (w *PageWriter) SavePage(n int, markup string) (string, error) {
	path := w.PagePath(n)
	if err := writeFile(path, markup); err != nil {
		return "", err
	}
	if n == 1 {
		if err := writeFile(w.htmlPath, markup); err != nil {
			return "", err
		}
	}
	w.logger.Debug("page saved", "page", n, "path", path, "bytes", len(markup))
	return path, nil
}

// SaveDebug writes a page that ended the search for later inspection.
func (w *PageWriter) SaveDebug(n int, markup string) (string, error) {
	path := filepath.Join(w.debugDir, fmt.Sprintf("debug_page_%d.html", n))
	if err := writeFile(path, markup); err != nil {
		return "", err
	}
	w.logger.Info("debug page saved", "page", n, "path", path)
	return path, nil
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
