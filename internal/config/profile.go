package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile holds optional publisher settings persisted as YAML.
// Everything here has a working default; the profile only pins overrides
// for projects with a non-standard layout or build command.
type Profile struct {
	// BuildCommand is the argv of the external build command.
	BuildCommand []string `yaml:"build_command"`
	// BundleRoot is the directory tree scanned for produced installers.
	BundleRoot string `yaml:"bundle_root"`
	// ManifestPath is where the update manifest is written.
	ManifestPath string `yaml:"manifest_path"`
	// Bucket is the storage bucket receiving release artifacts.
	Bucket string `yaml:"bucket"`
	// ProbeTimeout bounds each object-existence request.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	// UploadTimeout bounds each object upload request.
	UploadTimeout time.Duration `yaml:"upload_timeout"`
}

// errProfileIsNotSet is returned when a nil profile is provided to SaveProfile.
var errProfileIsNotSet = errors.New("profile is not set")

// LoadProfile reads a publisher profile from the provided path.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		path = DefaultProfileFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(contents, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}

	return &p, nil
}

// SaveProfile writes a publisher profile to the provided path.
func SaveProfile(path string, p *Profile) error {
	if p == nil {
		return errProfileIsNotSet
	}

	if path == "" {
		path = DefaultProfileFilename
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}

	return nil
}

// loadProfileIfPresent loads the profile when the file exists. An explicitly
// requested profile that cannot be read is an error; the absent default is not.
func loadProfileIfPresent(path string) (*Profile, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultProfileFilename
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if explicit {
			return nil, fmt.Errorf("%w: profile %s does not exist", ErrInvalid, path)
		}

		return &Profile{}, nil
	}

	return LoadProfile(path)
}
