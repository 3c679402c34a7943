// Package encoding decodes bytes-on-disk text sources. Detection order:
// byte-order-mark sniff, general charset detector, cp1252, latin-1. The
// pipeline stays operational when the detector fails: the cp1252/latin-1
// fallbacks always decode.
package encoding

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
)

// Detection methods recorded in document metadata.
const (
	MethodBOM            = "bom"
	MethodDetector       = "charset-detector"
	MethodCP1252Fallback = "cp1252-fallback"
	MethodLatin1Fallback = "latin-1-fallback"
)

// Decode converts raw file bytes to a string, returning the text together
// with the encoding name and the detection method that produced it.
func Decode(data []byte) (text, encoding, method string, err error) {
	// BOM sniff first: it is unambiguous.
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return string(data[3:]), "utf-8-sig", MethodBOM, nil
	}
	if bytes.HasPrefix(data, []byte{0xFF, 0xFE}) {
		return decodeUTF16(data[2:], false), "utf-16le", MethodBOM, nil
	}
	if bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		return decodeUTF16(data[2:], true), "utf-16be", MethodBOM, nil
	}

	// General detector. Failures fall through to the legacy fallbacks.
	if name := detect(data); name != "" {
		if decoded, ok := decodeNamed(data, name); ok {
			return decoded, name, MethodDetector, nil
		}
	}

	// cp1252 decodes every byte sequence, so check for the handful of
	// undefined code points instead of a decode error.
	if decoded, ok := decodeCP1252(data); ok {
		return decoded, "cp1252", MethodCP1252Fallback, nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().String(string(data))
	if err != nil {
		return "", "", "", fmt.Errorf("latin-1 decode: %w", err)
	}
	return decoded, "latin-1", MethodLatin1Fallback, nil
}

// detect runs the charset detector, tolerating any failure.
func detect(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil || result.Confidence < 50 {
		return ""
	}
	return strings.ToLower(result.Charset)
}

// decodeNamed decodes data with a detector-reported charset name.
func decodeNamed(data []byte, name string) (string, bool) {
	switch name {
	case "utf-8":
		if utf8.Valid(data) {
			return string(data), true
		}
		return "", false
	case "iso-8859-1":
		decoded, err := charmap.ISO8859_1.NewDecoder().String(string(data))
		return decoded, err == nil
	case "iso-8859-15":
		decoded, err := charmap.ISO8859_15.NewDecoder().String(string(data))
		return decoded, err == nil
	case "windows-1252":
		return decodeCP1252(data)
	}
	return "", false
}

// decodeCP1252 decodes Windows-1252, rejecting the undefined code points so
// binary junk falls through to latin-1.
func decodeCP1252(data []byte) (string, bool) {
	for _, b := range data {
		switch b {
		case 0x81, 0x8D, 0x8F, 0x90, 0x9D:
			return "", false
		}
	}
	decoded, err := charmap.Windows1252.NewDecoder().String(string(data))
	if err != nil {
		return "", false
	}
	return decoded, true
}

// decodeUTF16 decodes UTF-16 bytes after the BOM has been stripped.
func decodeUTF16(data []byte, bigEndian bool) string {
	u16 := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		if bigEndian {
			u16 = append(u16, uint16(data[i])<<8|uint16(data[i+1]))
		} else {
			u16 = append(u16, uint16(data[i+1])<<8|uint16(data[i]))
		}
	}
	return string(utf16.Decode(u16))
}
