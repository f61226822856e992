// Package release derives release metadata from installer filenames and
// assembles the update manifest consumed by the application's self-updater.
//
// Version and platform inference are pure functions over the filename,
// deliberately decoupled from filesystem access so the pattern table can be
// extended without touching I/O code.
package release
