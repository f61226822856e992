package release

import (
	"regexp"
	"strings"
)

// Platform identifies the target of an installer in the update manifest.
type Platform string

// The closed set of platform keys the manifest consumer understands.
// New installer types require adding a rule to InferPlatform.
const (
	PlatformWindowsX64 Platform = "windows-x86_64"
	PlatformWindows    Platform = "windows"
	PlatformDarwinARM  Platform = "darwin-aarch64"
	PlatformDarwinX64  Platform = "darwin-x86_64"
	PlatformUnknown    Platform = "unknown"
)

var (
	// versionPattern matches the first dotted numeric group in a filename.
	versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)*`)

	// windowsArchPattern matches 64-bit architecture markers in Windows installer names.
	windowsArchPattern = regexp.MustCompile(`x64|x86_64|amd64|x86-64`)

	// darwinArchPattern matches Apple Silicon markers in macOS installer names.
	darwinArchPattern = regexp.MustCompile(`arm|aarch64|arm64`)
)

// InferVersion extracts the first dotted numeric substring from the filename.
// Filenames without one are returned verbatim; callers treat that as a
// degraded version rather than an error.
func InferVersion(filename string) string {
	if match := versionPattern.FindString(filename); match != "" {
		return match
	}

	return filename
}

// InferPlatform maps an installer filename and its suffix to a platform key.
// The mapping is total: unrecognized suffixes yield PlatformUnknown.
func InferPlatform(filename, ext string) Platform {
	lower := strings.ToLower(filename)

	switch ext {
	case ".msi", ".exe":
		if windowsArchPattern.MatchString(lower) {
			return PlatformWindowsX64
		}

		return PlatformWindows
	case ".dmg":
		if darwinArchPattern.MatchString(lower) {
			return PlatformDarwinARM
		}

		return PlatformDarwinX64
	default:
		return PlatformUnknown
	}
}
