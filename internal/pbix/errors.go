package pbix

import "errors"

// Parse errors. Entry-level and container-level problems inside an
// archive are skipped individually and never surface as errors; only
// a container that cannot be opened at all fails the parse.
var (
	// ErrMalformedArchive is returned when the blob is not a readable
	// zip container. Callers must treat this as a distinguishable
	// failure, never as an empty visual list.
	ErrMalformedArchive = errors.New("malformed report archive: not a readable zip container")

	// ErrUndecodableLayout is returned by decodeLayout when no decode
	// attempt yields a valid JSON document. Parse swallows it per
	// entry; it is exported for tests and diagnostic logging.
	ErrUndecodableLayout = errors.New("layout entry is not decodable as UTF-16LE or UTF-8 JSON")
)
