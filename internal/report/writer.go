package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/faultlinehq/faultline/pkg/types"
)

// Writer exports experiment reports to disk. Each experiment gets its own
// directory under the results root, named by start time and experiment ID.
type Writer struct {
	root string
}

func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// Write exports the report as both JSON and YAML and returns the directory
// the files landed in.
func (w *Writer) Write(report *types.ExperimentReport) (string, error) {
	dir := filepath.Join(w.root, fmt.Sprintf("%s-%s",
		report.StartedAt.UTC().Format("20060102T150405Z"), report.ID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("ensure results dir %q: %w", dir, err)
	}

	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report json: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "report.json"), jsonData); err != nil {
		return "", err
	}

	yamlData, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encode report yaml: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "report.yaml"), yamlData); err != nil {
		return "", err
	}

	return dir, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write temp report %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit report %q: %w", path, err)
	}
	return nil
}
