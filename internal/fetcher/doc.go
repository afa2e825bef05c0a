// Package fetcher retrieves a single image over HTTP(S) and decodes it.
//
// A Fetcher performs exactly one GET per call, never retries, and never touches
// the filesystem. Failures are reported as errors wrapping domain.ErrNetwork
// (malformed URL, transport failure, non-success status) or domain.ErrDecode
// (oversized, non-image or corrupt body).
package fetcher
