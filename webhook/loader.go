package webhook

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

/* Endpoint configuration is loaded from endpoints.yaml at boot
 * The management plane that creates and edits endpoints is external;
 * the file is the hand-off point
 */

// FileConfig represents the structure of endpoints.yaml
type FileConfig struct {
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig represents a single endpoint in the YAML file
type EndpointConfig struct {
	ID          string   `yaml:"id"`
	WorkspaceID string   `yaml:"workspace_id"`
	URL         string   `yaml:"url"`
	Secret      string   `yaml:"secret"`
	Triggers    []string `yaml:"triggers"`
}

// LoadEndpoints reads and validates the endpoints YAML file
func LoadEndpoints(filePath string) ([]Endpoint, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading endpoints file: %w", err)
	}

	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing endpoints YAML: %w", err)
	}

	seen := make(map[string]struct{}, len(config.Endpoints))
	endpoints := make([]Endpoint, 0, len(config.Endpoints))
	for _, ec := range config.Endpoints {
		ep := Endpoint{
			ID:          ec.ID,
			WorkspaceID: ec.WorkspaceID,
			URL:         ec.URL,
			Secret:      ec.Secret,
			Triggers:    ec.Triggers,
		}
		if err := ep.Validate(); err != nil {
			return nil, fmt.Errorf("validating endpoint: %w", err)
		}
		if _, dup := seen[ep.ID]; dup {
			return nil, fmt.Errorf("duplicate endpoint id: %s", ep.ID)
		}
		seen[ep.ID] = struct{}{}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}
