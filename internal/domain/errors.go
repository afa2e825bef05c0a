package domain

import "errors"

// Failure reasons as sentinel errors. Every failure produced by a fetch-and-store
// task wraps exactly one of these.
var (
	// ErrEmptyOrMissingURL is returned when a request carries no image URL.
	// It never reaches the network or the disk.
	ErrEmptyOrMissingURL = errors.New("image URL is empty or missing")

	// ErrNetwork is returned when the URL is malformed, the connection fails,
	// or the server answers with a non-success status.
	ErrNetwork = errors.New("network error")

	// ErrDecode is returned when a response was received but its body is not
	// a decodable image.
	ErrDecode = errors.New("decode error")

	// ErrWrite is returned when a decoded image could not be written to the
	// pictures directory.
	ErrWrite = errors.New("write error")
)
