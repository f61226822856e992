package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arkmeter/release-publisher/internal/logger"
)

// EffectiveConfig is the fully resolved configuration for one pipeline run.
// It is built once at startup and threaded through the pipeline; nothing
// reads the environment or settings files after resolution.
type EffectiveConfig struct {
	// StorageEndpoint is the base URL of the storage service, without a trailing slash.
	StorageEndpoint string
	// Credential is the service role key sent on every storage request.
	Credential string
	// Bucket is the storage bucket receiving release artifacts.
	Bucket string
	// Notes is the release notes text embedded in the update manifest.
	Notes string
	// SkipBuild disables the external build step.
	SkipBuild bool
	// BuildCommand is the argv of the external build command.
	BuildCommand []string
	// BundleRoot is the directory tree scanned for produced installers.
	BundleRoot string
	// ManifestPath is where the update manifest is written.
	ManifestPath string
	// ProbeTimeout bounds each object-existence request.
	ProbeTimeout time.Duration
	// UploadTimeout bounds each object upload request.
	UploadTimeout time.Duration
}

// ResolveOptions are the caller-supplied inputs to Resolve.
// Flag values here take precedence over every file and environment source.
type ResolveOptions struct {
	// ProjectRoot is the directory holding the .env file and serving as the
	// build command's working directory.
	ProjectRoot string
	// ProfilePath is an optional path to a YAML publisher profile.
	ProfilePath string
	// Bucket overrides the bucket from environment, .env and profile.
	Bucket string
	// Notes is the release notes text for this run.
	Notes string
	// SkipBuild disables the external build step.
	SkipBuild bool
}

const (
	// EnvEndpoint names the environment variable holding the storage base URL.
	EnvEndpoint = "SUPABASE_URL"

	// EnvCredential names the environment variable holding the service role key.
	EnvCredential = "SUPABASE_KEY"

	// EnvBucket names the environment variable holding the bucket override.
	EnvBucket = "SUPABASE_BUCKET"

	// DotenvFilename is the KEY=VALUE settings file read from the project root.
	DotenvFilename = ".env"

	// DefaultProfileFilename is the default filename for the publisher profile.
	DefaultProfileFilename = "release-publisher.yaml"

	// DefaultBucket receives artifacts when no bucket is configured anywhere.
	DefaultBucket = "binaries"

	// DefaultProbeTimeout bounds object-existence requests.
	DefaultProbeTimeout = 15 * time.Second

	// DefaultUploadTimeout bounds object upload requests.
	DefaultUploadTimeout = 60 * time.Second

	// DefaultFilePermissions is the default file permission for settings files.
	DefaultFilePermissions = 0o600
)

// Default locations and commands for a Tauri project layout.
var (
	defaultBuildCommand = []string{"npm", "run", "tauri", "--", "build"}
	defaultBundleRoot   = filepath.Join("src-tauri", "target", "release", "bundle")
	defaultManifestPath = filepath.Join("public", "updater.json")
)

var (
	// ErrCredentialsMissing is returned when neither the environment nor the
	// .env file yields a storage endpoint and credential.
	ErrCredentialsMissing = errors.New("storage endpoint and credential are not configured")

	// ErrInvalid is wrapped by all other configuration validation failures.
	ErrInvalid = errors.New("invalid configuration")
)

// dotenvPlaceholder is written when no settings exist at all, so the operator
// has a concrete file to fill in instead of a bare error.
const dotenvPlaceholder = `# Storage configuration - replace the placeholders with real values
SUPABASE_URL=https://your-storage.example.com
SUPABASE_KEY=your-service-role-key
SUPABASE_BUCKET=binaries
`

// Resolve merges, in precedence order, process environment variables, the
// project .env file, the optional YAML profile and built-in defaults into an
// EffectiveConfig. When no endpoint or credential can be determined and no
// .env exists, a placeholder .env is written and the run fails.
func Resolve(ctx context.Context, opts *ResolveOptions) (*EffectiveConfig, error) {
	root := opts.ProjectRoot
	if root == "" {
		root = "."
	}

	dotenvPath := filepath.Join(root, DotenvFilename)

	fileValues, err := parseDotenv(dotenvPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dotenvPath, err)
	}

	profile, err := loadProfileIfPresent(opts.ProfilePath)
	if err != nil {
		return nil, err
	}

	endpoint := firstNonEmpty(os.Getenv(EnvEndpoint), fileValues[EnvEndpoint])
	credential := firstNonEmpty(os.Getenv(EnvCredential), fileValues[EnvCredential])

	if endpoint == "" || credential == "" {
		if _, statErr := os.Stat(dotenvPath); errors.Is(statErr, os.ErrNotExist) {
			if writeErr := os.WriteFile(dotenvPath, []byte(dotenvPlaceholder), DefaultFilePermissions); writeErr == nil {
				logger.InfoKV(ctx, "Wrote placeholder settings file, fill values and re-run", "path", dotenvPath)
			}
		}

		return nil, fmt.Errorf("%w: set %s and %s in the environment or %s",
			ErrCredentialsMissing, EnvEndpoint, EnvCredential, dotenvPath)
	}

	cfg := &EffectiveConfig{
		StorageEndpoint: strings.TrimRight(endpoint, "/"),
		Credential:      credential,
		Bucket: firstNonEmpty(
			opts.Bucket,
			os.Getenv(EnvBucket),
			fileValues[EnvBucket],
			profile.Bucket,
			DefaultBucket,
		),
		Notes:         opts.Notes,
		SkipBuild:     opts.SkipBuild,
		BuildCommand:  profile.BuildCommand,
		BundleRoot:    profile.BundleRoot,
		ManifestPath:  profile.ManifestPath,
		ProbeTimeout:  profile.ProbeTimeout,
		UploadTimeout: profile.UploadTimeout,
	}

	applyDefaults(cfg, root)

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the resolved configuration for required fields and formatting.
func Validate(cfg *EffectiveConfig) error {
	if cfg.StorageEndpoint == "" {
		return fmt.Errorf("%w: storage endpoint must be provided", ErrInvalid)
	}

	if _, err := url.ParseRequestURI(cfg.StorageEndpoint); err != nil {
		return fmt.Errorf("%w: storage endpoint %q: %v", ErrInvalid, cfg.StorageEndpoint, err)
	}

	if cfg.Credential == "" {
		return fmt.Errorf("%w: credential must be provided", ErrInvalid)
	}

	if len(cfg.BuildCommand) == 0 && !cfg.SkipBuild {
		return fmt.Errorf("%w: build command must not be empty", ErrInvalid)
	}

	return nil
}

// applyDefaults fills unset optional fields with the standard project layout.
func applyDefaults(cfg *EffectiveConfig, root string) {
	if len(cfg.BuildCommand) == 0 {
		cfg.BuildCommand = append([]string(nil), defaultBuildCommand...)
	}

	if cfg.BundleRoot == "" {
		cfg.BundleRoot = filepath.Join(root, defaultBundleRoot)
	}

	if cfg.ManifestPath == "" {
		cfg.ManifestPath = filepath.Join(root, defaultManifestPath)
	}

	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}
}

// parseDotenv reads a KEY=VALUE file. A missing file yields an empty map.
// Blank lines, #-comments and lines without '=' are skipped without error.
func parseDotenv(path string) (map[string]string, error) {
	values := make(map[string]string)

	f, err := os.Open(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	} else if err != nil {
		return nil, err
	}

	// Best-effort close on a read-only handle.
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		value = strings.Trim(value, `'`)

		values[strings.TrimSpace(key)] = value
	}

	if err = scanner.Err(); err != nil {
		return nil, err
	}

	return values, nil
}

// firstNonEmpty returns the first non-empty candidate.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}

	return ""
}
