// Package report serializes scan results to a machine-readable file.
package report

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ArsenArsen/smart-live-rebuild/internal/scheduler"
)

// Document is the on-disk report format
type Document struct {
	GeneratedAt      time.Time `yaml:"generated_at"`
	scheduler.Result `yaml:",inline"`
}

// Write marshals the result to path as YAML
func Write(path string, res *scheduler.Result) error {
	doc := Document{
		GeneratedAt: time.Now().UTC(),
		Result:      *res,
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
