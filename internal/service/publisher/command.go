package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/arkmeter/release-publisher/internal/artifact"
	"github.com/arkmeter/release-publisher/internal/config"
	"github.com/arkmeter/release-publisher/internal/logger"
	"github.com/arkmeter/release-publisher/internal/release"
	"github.com/arkmeter/release-publisher/internal/storage"
)

// Options contains inputs for the publisher entry point.
type Options struct {
	// ProjectRoot is the repository root: working directory of the build
	// command and location of the .env settings file.
	ProjectRoot string
	// ProfilePath is an optional path to a YAML publisher profile.
	ProfilePath string
	// Bucket overrides the storage bucket for this run.
	Bucket string
	// Notes is the release notes text embedded in the manifest.
	Notes string
	// SkipBuild disables the external build step.
	SkipBuild bool
}

// objectStore is the capability set the pipeline needs from storage.
type objectStore interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Upload(ctx context.Context, bucket, key string, content io.Reader) (*storage.UploadResult, error)
	PublicURL(bucket, key string) string
}

// publisher runs one release publication end to end.
// It is unexported—callers should use Run, which encapsulates setup.
type publisher struct {
	// cfg is the resolved, immutable configuration for this run.
	cfg *config.EffectiveConfig
	// store is the object-storage client.
	store objectStore
	// now supplies the manifest publish timestamp.
	now func() time.Time
}

// Run executes the publishing workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "release-publisher")

	if isAnotherPublisherRunning(ctx) {
		return ErrPublisherRunning
	}

	cfg, err := config.Resolve(ctx, &config.ResolveOptions{
		ProjectRoot: opts.ProjectRoot,
		ProfilePath: opts.ProfilePath,
		Bucket:      opts.Bucket,
		Notes:       opts.Notes,
		SkipBuild:   opts.SkipBuild,
	})
	if err != nil {
		return err
	}

	pub := &publisher{
		cfg: cfg,
		store: storage.New(cfg.StorageEndpoint, cfg.Credential,
			storage.WithProbeTimeout(cfg.ProbeTimeout),
			storage.WithUploadTimeout(cfg.UploadTimeout)),
		now: time.Now,
	}

	if err = pub.run(ctx, opts.ProjectRoot); err != nil {
		return err
	}

	logger.Info(ctx, "Publisher completed successfully")

	return nil
}

// run walks the pipeline states in order. Each step either completes or
// returns an error carrying its failure class; no step recovers on behalf of
// a lower component.
func (p *publisher) run(ctx context.Context, projectRoot string) error {
	if p.cfg.SkipBuild {
		logger.Info(ctx, "Skipping build step")
	} else if err := p.runBuild(ctx, projectRoot); err != nil {
		return err
	}

	installer, err := artifact.FindInstaller(p.cfg.BundleRoot)
	if err != nil {
		return fmt.Errorf("scan bundle tree: %w", err)
	}

	if installer == nil {
		return fmt.Errorf("%w: nothing under %s, did the build produce an installer?",
			ErrInstallerNotFound, p.cfg.BundleRoot)
	}

	signature, err := artifact.FindSignature(installer)
	if err != nil {
		return fmt.Errorf("locate signature: %w", err)
	}

	if signature == nil {
		return fmt.Errorf("%w: no match for %s (tried %s.sig)",
			ErrSignatureNotFound, installer.Name, installer.Name)
	}

	version := release.InferVersion(installer.Name)
	platform := release.InferPlatform(installer.Name, installer.Ext)

	signatureText, err := artifact.ReadSignatureText(signature)
	if err != nil {
		return fmt.Errorf("read signature %s: %w", signature.Path, err)
	}

	logger.InfoKV(ctx, "Selected release artifacts",
		"installer", installer.Path,
		"signature", signature.Path,
		"version", version,
		"platform", platform)

	// Installer first, then signature, so a failure names exactly one artifact.
	for _, item := range []struct{ key, path string }{
		{installer.Name, installer.Path},
		{signature.Name, signature.Path},
	} {
		if err = p.uploadIfAbsent(ctx, item.key, item.path); err != nil {
			return err
		}
	}

	publicURL := p.store.PublicURL(p.cfg.Bucket, installer.Name)
	manifest := release.NewManifest(version, p.cfg.Notes, p.now(), platform, signatureText, publicURL)

	if err = manifest.Save(p.cfg.ManifestPath); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Wrote update manifest",
		"path", p.cfg.ManifestPath,
		"version", version,
		"url", publicURL)

	return nil
}

// runBuild invokes the external build command in the project root. Success is
// exit code 0; the command's output streams through untouched.
func (p *publisher) runBuild(ctx context.Context, projectRoot string) error {
	argv := p.cfg.BuildCommand

	logger.InfoKV(ctx, "Running build, this can take a while", "command", argv)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = projectRoot
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}

	return nil
}

// uploadIfAbsent uploads the file under key unless the object already exists.
// Existence-check transport failures abort the run; absence is the only state
// that triggers an upload.
func (p *publisher) uploadIfAbsent(ctx context.Context, key, path string) error {
	exists, err := p.store.Exists(ctx, p.cfg.Bucket, key)
	if err != nil {
		return fmt.Errorf("check existence of %s: %w", key, err)
	}

	if exists {
		logger.InfoKV(ctx, "Object already present, skipping upload", "key", key, "bucket", p.cfg.Bucket)
		return nil
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	// Best-effort close on a read-only handle.
	defer func() {
		_ = f.Close()
	}()

	result, err := p.store.Upload(ctx, p.cfg.Bucket, key, f)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	logger.InfoKV(ctx, "Uploaded object", "key", key, "bucket", p.cfg.Bucket, "status", result.StatusCode)

	return nil
}
