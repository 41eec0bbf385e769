package engine

import (
	"golang.org/x/text/encoding/unicode"

	"github.com/pdflume/pdflume/errors"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// DecodeUTF16LE converts an engine string buffer (UTF-16LE, optionally
// NUL-terminated) to a Go string.
func DecodeUTF16LE(b []byte) (string, error) {
	// Strip the NUL terminator the engine appends.
	for len(b) >= 2 && b[len(b)-1] == 0 && b[len(b)-2] == 0 {
		b = b[:len(b)-2]
	}
	if len(b) == 0 {
		return "", nil
	}

	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "decode utf-16le")
	}
	return string(out), nil
}

// EncodeUTF16LE converts a Go string to the engine's UTF-16LE form with a
// NUL terminator.
func EncodeUTF16LE(s string) ([]byte, error) {
	out, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "encode utf-16le")
	}
	return append(out, 0, 0), nil
}
