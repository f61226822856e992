package release

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultManifestFileMode is used when writing the update manifest.
const DefaultManifestFileMode os.FileMode = 0o644

// PlatformRelease is one platform's entry in the update manifest.
type PlatformRelease struct {
	// Signature is the verbatim trimmed content of the detached signature file.
	Signature string `json:"signature"`
	// URL is the public download URL of the installer.
	URL string `json:"url"`
}

// Manifest is the update manifest consumed by the application's self-updater
// and the landing page. One pipeline run produces exactly one platform entry;
// re-running for another platform overwrites the whole file.
type Manifest struct {
	// Version is the semantic version inferred from the installer filename.
	Version string `json:"version"`
	// Notes is the release notes text supplied by the caller.
	Notes string `json:"notes"`
	// PubDate is the publish timestamp, ISO-8601 UTC with second precision.
	PubDate string `json:"pub_date"`
	// Platforms maps a platform key to its signature and download URL.
	Platforms map[Platform]PlatformRelease `json:"platforms"`
}

// NewManifest assembles an update manifest for a single platform.
func NewManifest(
	version, notes string,
	pubDate time.Time,
	platform Platform,
	signature, url string,
) *Manifest {
	return &Manifest{
		Version: version,
		Notes:   notes,
		PubDate: FormatPubDate(pubDate),
		Platforms: map[Platform]PlatformRelease{
			platform: {Signature: signature, URL: url},
		},
	}
}

// Save writes the manifest as pretty-printed JSON, creating parent
// directories as needed. A direct overwrite is acceptable: the pipeline is
// the single writer and synthesis is its last step.
func (m *Manifest) Save(path string) error {
	contents, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), contents, DefaultManifestFileMode); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// Load reads a manifest back from disk.
func Load(path string) (*Manifest, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err = json.Unmarshal(contents, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	return &m, nil
}

// FormatPubDate renders a publish timestamp as ISO-8601 UTC with second
// precision and a 'Z' suffix.
func FormatPubDate(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
