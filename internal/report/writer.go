package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Writer сохраняет отчет в каталог, а при ошибке печатает его в stdout
type Writer struct {
	dir      string
	fallback io.Writer
	logger   *zap.Logger
}

// NewWriter создает Writer. fallback по умолчанию os.Stdout.
func NewWriter(dir string, fallback io.Writer, logger *zap.Logger) *Writer {
	if fallback == nil {
		fallback = os.Stdout
	}
	return &Writer{dir: dir, fallback: fallback, logger: logger}
}

// Write сохраняет отчет и возвращает путь к файлу.
// Пустой путь означает, что отчет напечатан в fallback. Ошибка записи не фатальна.
func (w *Writer) Write(s Summary, content string) string {
	path := filepath.Join(w.dir, FileName(s.StartedAt))

	if err := w.writeFile(path, content); err != nil {
		w.logger.Warn("Failed to write report file, printing to stdout",
			zap.String("path", path),
			zap.Error(err))
		if _, err := fmt.Fprintln(w.fallback, content); err != nil {
			w.logger.Error("Failed to print report", zap.Error(err))
		}
		return ""
	}

	w.logger.Info("Report saved", zap.String("path", path))
	return path
}

func (w *Writer) writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
