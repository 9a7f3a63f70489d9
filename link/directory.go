package link

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Directory.Lookup for unknown (domain, key) pairs.
var ErrNotFound = errors.New("link not found")

/* Directory is the authoritative source of link records
 * The redirect path consults it only on cache miss
 */
type Directory interface {
	Lookup(ctx context.Context, domain, key string) (Record, error)
}

/* FileDirectory serves link records from a links.yaml file
 * Provides in-memory lookup for fast access; the file is the
 * hand-off point from the (external) link-management plane
 */

// FileConfig represents the structure of links.yaml
type FileConfig struct {
	Links []LinkConfig `yaml:"links"`
}

// LinkConfig represents a single link in the YAML file
type LinkConfig struct {
	ID          string            `yaml:"id"`
	Domain      string            `yaml:"domain"`
	Key         string            `yaml:"key"`
	WorkspaceID string            `yaml:"workspace_id"`
	TargetURL   string            `yaml:"target_url"`
	ExpiresAt   string            `yaml:"expires_at"` // RFC 3339, optional
	Password    string            `yaml:"password"`   // optional
	IOSURL      string            `yaml:"ios_url"`
	AndroidURL  string            `yaml:"android_url"`
	Geo         map[string]string `yaml:"geo"`
	WebhookIDs  []string          `yaml:"webhook_ids"`
}

type FileDirectory struct {
	normalizer *Normalizer
	links      map[string]Record
}

// NewFileDirectory creates an empty directory using the given key normalizer
func NewFileDirectory(normalizer *Normalizer) *FileDirectory {
	return &FileDirectory{
		normalizer: normalizer,
		links:      make(map[string]Record),
	}
}

// Load reads and parses the links YAML file, replacing current contents
func (d *FileDirectory) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading links file: %w", err)
	}

	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing links YAML: %w", err)
	}

	links := make(map[string]Record, len(config.Links))
	for _, lc := range config.Links {
		rec, err := lc.toRecord()
		if err != nil {
			return fmt.Errorf("validating link: %w", err)
		}
		mapKey := d.mapKey(rec.Domain, rec.Key)
		if _, exists := links[mapKey]; exists {
			return fmt.Errorf("duplicate link %s/%s", rec.Domain, rec.Key)
		}
		links[mapKey] = rec
	}
	d.links = links
	return nil
}

// Lookup retrieves a link record by its normalized (domain, key) pair
func (d *FileDirectory) Lookup(ctx context.Context, domain, key string) (Record, error) {
	rec, exists := d.links[d.mapKey(domain, key)]
	if !exists {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// List returns all loaded link records
func (d *FileDirectory) List() []Record {
	records := make([]Record, 0, len(d.links))
	for _, rec := range d.links {
		records = append(records, rec)
	}
	return records
}

func (d *FileDirectory) mapKey(domain, key string) string {
	domain, key = d.normalizer.Normalize(domain, key)
	return domain + "/" + key
}

func (lc LinkConfig) toRecord() (Record, error) {
	rec := Record{
		ID:          lc.ID,
		Domain:      strings.ToLower(lc.Domain),
		Key:         lc.Key,
		WorkspaceID: lc.WorkspaceID,
		TargetURL:   lc.TargetURL,
		Password:    lc.Password,
		PasswordSet: lc.Password != "",
		IOSURL:      lc.IOSURL,
		AndroidURL:  lc.AndroidURL,
		GeoRules:    lc.Geo,
		WebhookIDs:  lc.WebhookIDs,
	}
	if lc.ExpiresAt != "" {
		expires, err := time.Parse(time.RFC3339, lc.ExpiresAt)
		if err != nil {
			return Record{}, fmt.Errorf("parsing expires_at for %s/%s: %w", lc.Domain, lc.Key, err)
		}
		rec.ExpiresAt = &expires
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}
