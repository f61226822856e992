package publisher

import (
	"errors"

	"github.com/arkmeter/release-publisher/internal/config"
	"github.com/arkmeter/release-publisher/internal/storage"
)

var (
	// ErrPublisherRunning indicates another publisher instance was detected.
	// Runs against the same bucket must be serialized.
	ErrPublisherRunning = errors.New("another release-publisher instance is running")

	// ErrBuildFailed indicates the external build command exited non-zero.
	ErrBuildFailed = errors.New("build command failed")

	// ErrInstallerNotFound indicates no installer exists under the bundle tree.
	ErrInstallerNotFound = errors.New("no installer found")

	// ErrSignatureNotFound indicates an installer without a paired signature.
	// There is no installer without a signature in the published manifest.
	ErrSignatureNotFound = errors.New("no signature file found")
)

// Process exit codes, one per failure class, stable for operators and CI.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitConfig         = 2
	ExitBuild          = 3
	ExitNoInstaller    = 4
	ExitNoSignature    = 5
	ExitTransport      = 6
	ExitUploadRejected = 7
)

// ExitCode maps a pipeline error to its process exit code.
func ExitCode(err error) int {
	var (
		transportErr *storage.TransportError
		rejectedErr  *storage.UploadRejectedError
	)

	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrCredentialsMissing),
		errors.Is(err, config.ErrInvalid),
		errors.Is(err, ErrPublisherRunning):
		return ExitConfig
	case errors.Is(err, ErrBuildFailed):
		return ExitBuild
	case errors.Is(err, ErrInstallerNotFound):
		return ExitNoInstaller
	case errors.Is(err, ErrSignatureNotFound):
		return ExitNoSignature
	case errors.As(err, &transportErr):
		return ExitTransport
	case errors.As(err, &rejectedErr):
		return ExitUploadRejected
	default:
		return ExitFailure
	}
}
