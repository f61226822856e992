// Package storage is a minimal HTTP client for the object-storage API:
// existence probes, raw-body uploads and public URL construction.
//
// Existence checks run a fixed-order strategy list (primary info path,
// alternate info path, prefix-list fallback) and stop at the first
// definitive answer. Transport failure is never reported as "absent".
package storage
