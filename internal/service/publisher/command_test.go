package publisher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arkmeter/release-publisher/internal/config"
	"github.com/arkmeter/release-publisher/internal/release"
	"github.com/arkmeter/release-publisher/internal/storage"
)

// fakeStore is an in-memory objectStore counting upload calls.
type fakeStore struct {
	mu       sync.Mutex
	existing map[string]bool
	uploads  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: make(map[string]bool)}
}

func (s *fakeStore) Exists(_ context.Context, _, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.existing[key], nil
}

func (s *fakeStore) Upload(_ context.Context, _, key string, _ io.Reader) (*storage.UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploads = append(s.uploads, key)
	s.existing[key] = true

	return &storage.UploadResult{StatusCode: http.StatusOK}, nil
}

func (s *fakeStore) PublicURL(bucket, key string) string {
	return "https://storage.example.com/storage/v1/object/public/" + bucket + "/" + key
}

// fakeStorageServer emulates the storage API with stateful object tracking.
type fakeStorageServer struct {
	mu          sync.Mutex
	objects     map[string]bool
	uploadCalls int
}

func (s *fakeStorageServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		switch {
		case strings.HasPrefix(r.URL.Path, "/storage/v1/object/info/binaries/"):
			key := strings.TrimPrefix(r.URL.EscapedPath(), "/storage/v1/object/info/binaries/")
			if s.objects[key] {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/storage/v1/object/binaries/"):
			key := strings.TrimPrefix(r.URL.EscapedPath(), "/storage/v1/object/binaries/")
			s.uploadCalls++
			s.objects[key] = true
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

// writeBundle creates a project tree with a bundle dir and returns its root.
func writeBundle(t *testing.T, files map[string]string) (root, bundleRoot string) {
	t.Helper()

	root = t.TempDir()
	bundleRoot = filepath.Join(root, "bundle")
	require.NoError(t, os.MkdirAll(bundleRoot, 0o755))

	for name, contents := range files {
		require.NoError(t, os.WriteFile(filepath.Join(bundleRoot, name), []byte(contents), 0o644))
	}

	return root, bundleRoot
}

// writeProfile persists a test profile pointing the pipeline at the temp tree.
func writeProfile(t *testing.T, root, bundleRoot string) string {
	t.Helper()

	path := filepath.Join(root, "profile.yaml")
	require.NoError(t, config.SaveProfile(path, &config.Profile{
		BundleRoot:   bundleRoot,
		ManifestPath: filepath.Join(root, "public", "updater.json"),
	}))

	return path
}

// TestPipelineEndToEnd runs the whole pipeline twice against an emulated
// storage API: two uploads the first time, zero the second.
func TestPipelineEndToEnd(t *testing.T) {
	backend := &fakeStorageServer{objects: make(map[string]bool)}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	t.Setenv(config.EnvEndpoint, server.URL)
	t.Setenv(config.EnvCredential, "service-role-key")
	t.Setenv(config.EnvBucket, "")

	root, bundleRoot := writeBundle(t, map[string]string{
		"App_2.0.0.dmg":     "installer bytes",
		"App_2.0.0.dmg.sig": "c2lnbmF0dXJl\n",
	})

	opts := &Options{
		ProjectRoot: root,
		ProfilePath: writeProfile(t, root, bundleRoot),
		Notes:       "first macOS build",
		SkipBuild:   true,
	}

	require.NoError(t, Run(context.Background(), opts))
	require.Equal(t, 2, backend.uploadCalls)
	require.True(t, backend.objects["App_2.0.0.dmg"])
	require.True(t, backend.objects["App_2.0.0.dmg.sig"])

	manifest, err := release.Load(filepath.Join(root, "public", "updater.json"))
	require.NoError(t, err)
	require.Equal(t, "2.0.0", manifest.Version)
	require.Equal(t, "first macOS build", manifest.Notes)
	require.True(t, strings.HasSuffix(manifest.PubDate, "Z"))

	entry, ok := manifest.Platforms[release.PlatformDarwinX64]
	require.True(t, ok)
	require.Equal(t, "c2lnbmF0dXJl", entry.Signature)
	require.Equal(t, server.URL+"/storage/v1/object/public/binaries/App_2.0.0.dmg", entry.URL)

	// Second run: both objects exist, so no further upload calls happen.
	require.NoError(t, Run(context.Background(), opts))
	require.Equal(t, 2, backend.uploadCalls)
}

// TestPipelineSignatureMissing fails before any upload when the installer has
// no paired signature.
func TestPipelineSignatureMissing(t *testing.T) {
	backend := &fakeStorageServer{objects: make(map[string]bool)}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	t.Setenv(config.EnvEndpoint, server.URL)
	t.Setenv(config.EnvCredential, "service-role-key")

	root, bundleRoot := writeBundle(t, map[string]string{
		"App_2.0.0.dmg": "installer bytes",
	})

	err := Run(context.Background(), &Options{
		ProjectRoot: root,
		ProfilePath: writeProfile(t, root, bundleRoot),
		SkipBuild:   true,
	})
	require.ErrorIs(t, err, ErrSignatureNotFound)
	require.Zero(t, backend.uploadCalls)

	_, statErr := os.Stat(filepath.Join(root, "public", "updater.json"))
	require.True(t, errors.Is(statErr, os.ErrNotExist))
}

// TestPipelineNoInstaller distinguishes an empty bundle tree.
func TestPipelineNoInstaller(t *testing.T) {
	t.Setenv(config.EnvEndpoint, "https://storage.example.com")
	t.Setenv(config.EnvCredential, "service-role-key")

	root, bundleRoot := writeBundle(t, nil)

	err := Run(context.Background(), &Options{
		ProjectRoot: root,
		ProfilePath: writeProfile(t, root, bundleRoot),
		SkipBuild:   true,
	})
	require.ErrorIs(t, err, ErrInstallerNotFound)
}

// TestPipelineBuildFailure maps a failing build command to the build class.
func TestPipelineBuildFailure(t *testing.T) {
	t.Setenv(config.EnvEndpoint, "https://storage.example.com")
	t.Setenv(config.EnvCredential, "service-role-key")

	root, bundleRoot := writeBundle(t, nil)

	profilePath := filepath.Join(root, "profile.yaml")
	require.NoError(t, config.SaveProfile(profilePath, &config.Profile{
		BuildCommand: []string{"release-publisher-no-such-build-tool"},
		BundleRoot:   bundleRoot,
	}))

	err := Run(context.Background(), &Options{
		ProjectRoot: root,
		ProfilePath: profilePath,
	})
	require.ErrorIs(t, err, ErrBuildFailed)
	require.Equal(t, ExitBuild, ExitCode(err))
}

// TestUploadIfAbsentIdempotent performs exactly one upload per key across
// repeated invocations.
func TestUploadIfAbsentIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	pub := &publisher{
		cfg: &config.EffectiveConfig{
			StorageEndpoint: "https://storage.example.com",
			Credential:      "key",
			Bucket:          "binaries",
		},
		store: store,
		now:   time.Now,
	}

	path := filepath.Join(t.TempDir(), "App_2.0.0.dmg")
	require.NoError(t, os.WriteFile(path, []byte("installer bytes"), 0o644))

	ctx := context.Background()
	require.NoError(t, pub.uploadIfAbsent(ctx, "App_2.0.0.dmg", path))
	require.NoError(t, pub.uploadIfAbsent(ctx, "App_2.0.0.dmg", path))
	require.Equal(t, []string{"App_2.0.0.dmg"}, store.uploads)
}

// TestExitCode pins the stable failure-class enumeration.
func TestExitCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, ExitOK, ExitCode(nil))
	require.Equal(t, ExitConfig, ExitCode(config.ErrCredentialsMissing))
	require.Equal(t, ExitConfig, ExitCode(ErrPublisherRunning))
	require.Equal(t, ExitBuild, ExitCode(ErrBuildFailed))
	require.Equal(t, ExitNoInstaller, ExitCode(ErrInstallerNotFound))
	require.Equal(t, ExitNoSignature, ExitCode(ErrSignatureNotFound))
	require.Equal(t, ExitTransport, ExitCode(&storage.TransportError{Endpoint: "e", Err: errors.New("refused")}))
	require.Equal(t, ExitUploadRejected, ExitCode(&storage.UploadRejectedError{Key: "k", StatusCode: 500}))
	require.Equal(t, ExitFailure, ExitCode(errors.New("anything else")))
}
