package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadPipelineFile overlays the YAML file at path onto p. Keys missing from
// the file keep their current value.
func loadPipelineFile(path string, p *PipelineConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("parsing pipeline config: %w", err)
	}
	p.TranscriptionMode = strings.ToLower(strings.TrimSpace(p.TranscriptionMode))
	p.AudioFormat = strings.ToLower(strings.TrimSpace(p.AudioFormat))
	return nil
}
