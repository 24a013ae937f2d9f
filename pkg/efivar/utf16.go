package efivar

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeUTF16 encodes s as UTF-16LE without BOM and without terminator.
func EncodeUTF16(s string) ([]byte, error) {
	return utf16le.NewEncoder().Bytes([]byte(s))
}

// DecodeUTF16 decodes UTF-16LE bytes.
func DecodeUTF16(b []byte) (string, error) {
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// CutUTF16String splits a NUL terminated UTF-16LE string off the front of b.
// It returns the decoded string and the bytes after the terminator.
func CutUTF16String(b []byte) (string, []byte, error) {
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			s, err := DecodeUTF16(b[:i])
			return s, b[i+2:], err
		}
	}
	return "", nil, fmt.Errorf("unterminated UTF-16 string in %d bytes", len(b))
}
