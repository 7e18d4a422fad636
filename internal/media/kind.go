package media

import (
	"mime"
	"path/filepath"
	"strings"
)

// Kind classifies a byte buffer.
type Kind string

const (
	KindUnknown Kind = "unknown"
	KindMP3     Kind = "mp3"
	KindWebM    Kind = "webm"
	KindMP4     Kind = "m4a"
	KindWAV     Kind = "wav"
	KindPDF     Kind = "pdf"
	KindHTML    Kind = "html"
	KindHLS     Kind = "hls-playlist"
)

var kindMIME = map[Kind]string{
	KindMP3:  "audio/mpeg",
	KindWebM: "audio/webm",
	KindMP4:  "audio/mp4",
	KindWAV:  "audio/wav",
	KindPDF:  "application/pdf",
	KindHTML: "text/html",
	KindHLS:  "application/vnd.apple.mpegurl",
}

// MIMEType returns the canonical MIME string for k.
func (k Kind) MIMEType() string {
	if ct, ok := kindMIME[k]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Ext returns the file extension (without dot) used when the buffer is sent
// to a collaborator that wants a filename.
func (k Kind) Ext() string {
	switch k {
	case KindHLS:
		return "m3u8"
	case KindUnknown, "":
		return "bin"
	default:
		return string(k)
	}
}

// IsAudio reports whether k can be transcribed.
func (k Kind) IsAudio() bool {
	switch k {
	case KindMP3, KindWebM, KindMP4, KindWAV:
		return true
	}
	return false
}

// IsDocument reports whether k is a page-oriented document.
func (k Kind) IsDocument() bool {
	return k == KindPDF
}

// FromMIME maps a server-declared Content-Type to a Kind. Parameters are
// ignored. The second result is false when the type is absent or not one
// this service understands.
func FromMIME(contentType string) (Kind, bool) {
	if contentType == "" {
		return KindUnknown, false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	switch mediaType {
	case "audio/mpeg", "audio/mp3", "audio/mpeg3", "audio/x-mpeg-3":
		return KindMP3, true
	case "audio/webm", "video/webm":
		return KindWebM, true
	case "audio/mp4", "audio/m4a", "audio/x-m4a", "video/mp4", "audio/aac":
		return KindMP4, true
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return KindWAV, true
	case "application/pdf", "application/x-pdf":
		return KindPDF, true
	case "text/html", "application/xhtml+xml":
		return KindHTML, true
	case "application/vnd.apple.mpegurl", "application/x-mpegurl", "audio/mpegurl", "audio/x-mpegurl":
		return KindHLS, true
	}
	return KindUnknown, false
}

// FromExtension maps a filename or bare extension to a Kind.
func FromExtension(name string) (Kind, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		ext = strings.ToLower(strings.TrimPrefix(name, "."))
	}
	switch ext {
	case "mp3", "mpeg", "mpga":
		return KindMP3, true
	case "webm":
		return KindWebM, true
	case "m4a", "mp4", "aac":
		return KindMP4, true
	case "wav", "wave":
		return KindWAV, true
	case "pdf":
		return KindPDF, true
	case "html", "htm":
		return KindHTML, true
	case "m3u8", "m3u":
		return KindHLS, true
	}
	return KindUnknown, false
}
