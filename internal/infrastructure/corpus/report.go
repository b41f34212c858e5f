package corpus

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/corpustools/dedup/internal/core/domain"
)

const reportFileName = "dedup_report.json"

// ReportPathFor places the report next to the output: inside an output
// directory, or alongside an output file.
func ReportPathFor(outputPath string) string {
	if strings.HasSuffix(outputPath, ".jsonl") {
		return filepath.Join(filepath.Dir(outputPath), reportFileName)
	}
	return filepath.Join(outputPath, reportFileName)
}

func WriteReport(path string, report *domain.DedupReport) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return domain.WrapError(domain.ErrIO, "create report dir", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return domain.WrapError(domain.ErrIO, "encode report", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return domain.WrapError(domain.ErrIO, "write report", err)
	}
	return nil
}
