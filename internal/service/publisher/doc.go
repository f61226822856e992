// Package publisher sequences the release pipeline: resolve configuration,
// optionally run the external build, locate the installer and its signature,
// infer release metadata, upload both artifacts if absent, and write the
// update manifest.
//
// The pipeline is strictly sequential and the manifest is written only after
// both uploads are resolved. Every failure class maps to a distinct exit code.
package publisher
