// Package storage persists a decoded image as the single well-known asset file.
//
// The asset lives at a fixed path inside an explicitly configured pictures
// directory and is overwritten in place by every successful store. Writes go to
// a temporary sibling first and are renamed over the asset only once fully
// flushed, so a failed or interrupted store never leaves a truncated asset.
// Concurrent stores race on the same path and the last rename wins.
package storage
