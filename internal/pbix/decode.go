package pbix

import (
	"encoding/json"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// decodeAttempt is one entry in the ordered list of layout decodings.
// Attempts are consumed in order until one yields valid JSON.
type decodeAttempt struct {
	// name identifies the encoding for logging.
	name string

	// decode converts raw entry bytes to UTF-8 text.
	decode func(data []byte) ([]byte, error)
}

// decodeAttempts returns the ordered decodings for layout entries.
// PBIX layouts are natively UTF-16 little-endian; UTF-8 appears in
// some tooling-generated archives, so it is the fallback.
func decodeAttempts() []decodeAttempt {
	return []decodeAttempt{
		{
			name: "utf-16le",
			decode: func(data []byte) ([]byte, error) {
				dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
				return dec.Bytes(data)
			},
		},
		{
			name: "utf-8",
			decode: func(data []byte) ([]byte, error) {
				return data, nil
			},
		},
	}
}

// decodeLayout converts a raw layout entry into UTF-8 JSON text.
// Each decode attempt is validated by checking that the result is a
// syntactically valid JSON document; a wrong-encoding decode produces
// mojibake that fails that check and falls through to the next
// attempt. Returns ErrUndecodableLayout when every attempt fails.
func decodeLayout(data []byte) ([]byte, error) {
	for _, attempt := range decodeAttempts() {
		text, err := attempt.decode(data)
		if err != nil {
			continue
		}
		if json.Valid(text) {
			return text, nil
		}
	}
	return nil, fmt.Errorf("%w (%d bytes)", ErrUndecodableLayout, len(data))
}
