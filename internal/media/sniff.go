// Package media holds the byte-level model of fetched content: the Kind
// taxonomy, the signature sniffer that decides it, and the bounded chunk
// collector every acquisition channel reads through.
package media

import (
	"bytes"
)

// MinSniffLen is the shortest buffer Sniff will classify.
const MinSniffLen = 12

const textHeadLen = 15

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Sniff classifies data by its leading bytes. It never consults declared
// metadata. The second result is false when no signature matched or the
// buffer is shorter than MinSniffLen.
func Sniff(data []byte) (Kind, bool) {
	if len(data) < MinSniffLen {
		return KindUnknown, false
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return KindPDF, true
	case bytes.HasPrefix(data, []byte("ID3")):
		return KindMP3, true
	case data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return KindMP3, true
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return KindWebM, true
	case bytes.Equal(data[4:8], []byte("ftyp")):
		return KindMP4, true
	case bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return KindWAV, true
	}

	head := textHead(data)
	switch {
	case bytes.HasPrefix(head, []byte("#extm3u")):
		return KindHLS, true
	case bytes.HasPrefix(head, []byte("<!doctype")), bytes.HasPrefix(head, []byte("<html")):
		return KindHTML, true
	}
	return KindUnknown, false
}

// textHead returns the lowercased first bytes of data after an optional BOM
// and leading ASCII whitespace.
func textHead(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) > textHeadLen {
		data = data[:textHeadLen]
	}
	return bytes.ToLower(data)
}

// Detect sniffs data and falls back to the declared kind when no signature
// matched. sniffed reports whether the result came from the bytes.
func Detect(data []byte, declared Kind) (kind Kind, sniffed bool) {
	if k, ok := Sniff(data); ok {
		return k, true
	}
	if declared == "" {
		declared = KindUnknown
	}
	return declared, false
}
