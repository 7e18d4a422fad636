// Package content decides what happens to a resolved buffer: documents go to
// text extraction, everything else to transcription.
package content

import (
	"net/url"
	"path"

	"mediaquiz/internal/media"
)

// Path is the downstream step for a buffer.
type Path string

const (
	PathTranscribe  Path = "transcribe"
	PathExtractText Path = "extract-text"
)

// Decision pairs the chosen path with the buffer it applies to.
type Decision struct {
	Path   Path
	Buffer *media.Buffer
}

// Route picks the path for buf. The sniffed kind is authoritative; hint (the
// source URL or filename) is consulted only when the kind was not confirmed
// by a signature.
func Route(buf *media.Buffer, hint string) Decision {
	if buf.Kind().IsDocument() {
		return Decision{Path: PathExtractText, Buffer: buf}
	}
	if !buf.Sniffed() {
		if k, ok := media.FromExtension(hintName(hint)); ok && k.IsDocument() {
			return Decision{Path: PathExtractText, Buffer: buf}
		}
	}
	return Decision{Path: PathTranscribe, Buffer: buf}
}

func hintName(hint string) string {
	if u, err := url.Parse(hint); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(hint)
}
