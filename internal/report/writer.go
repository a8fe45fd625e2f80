package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"flowmap/internal/domain"

	"gitlab.com/nevasik7/alerting/logger"
)

// Writer persists flow reports as flows_<period>.json under a data dir.
// Writes are plain truncate-and-write, not atomic renames; the front-end
// re-fetches on an interval so a rare torn read self-heals.
type Writer struct {
	log     logger.Logger
	dataDir string
}

func NewWriter(log logger.Logger, dataDir string) *Writer {
	return &Writer{log: log, dataDir: dataDir}
}

func (w *Writer) Path(period domain.Period) string {
	return filepath.Join(w.dataDir, fmt.Sprintf("flows_%s.json", period))
}

// Write serializes the report and overwrites any previous artifact for
// the same period. The data dir is created on demand.
func (w *Writer) Write(report *domain.FlowReport) error {
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed create data dir %s, error=%w", w.dataDir, err)
	}

	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed marshal %s report, error=%w", report.Period, err)
	}

	path := w.Path(report.Period)
	if err = os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed write %s, error=%w", path, err)
	}

	w.log.Infof("Wrote %s report: %d flows, total=%.6f -> %s", report.Period, len(report.Flows), report.TotalVolume, path)
	return nil
}

// Read loads a previously written artifact; the HTTP API falls back to it
// when the cache has nothing.
func (w *Writer) Read(period domain.Period) (*domain.FlowReport, error) {
	b, err := os.ReadFile(w.Path(period))
	if err != nil {
		return nil, err
	}

	var report domain.FlowReport
	if err = json.Unmarshal(b, &report); err != nil {
		return nil, fmt.Errorf("failed parse %s, error=%w", w.Path(period), err)
	}

	return &report, nil
}
