// Package resolve turns a caller's source reference into a validated media
// buffer. There is one Resolver per acquisition channel; all of them share
// the same content rules so a buffer leaving this package is always
// sniff-confirmed (or explicitly accepted under lenient mode).
package resolve

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/media"
)

// Channel prefixes used in reason strings.
const (
	ChannelDirect   = "DIRECT"
	ChannelUpload   = "UPLOAD"
	ChannelVideo    = "VIDEO"
	ChannelFallback = "FALLBACK"
	ChannelObject   = "OBJECT"
)

// Request is one caller's source reference. Exactly one of URL and Upload
// is set.
type Request struct {
	URL      string
	Upload   []byte
	Filename string
}

// Validate rejects requests before any network activity.
func (r Request) Validate() error {
	hasURL := strings.TrimSpace(r.URL) != ""
	switch {
	case hasURL && r.Upload != nil:
		return apperr.Validation(apperr.ReasonAmbiguousSource, "provide either a url or a file, not both")
	case hasURL:
		return nil
	case r.Upload == nil:
		return apperr.Validation(apperr.ReasonMissingURL, "a url or a file is required")
	case len(r.Upload) == 0:
		return apperr.Validation(apperr.ReasonEmptyFile, "the uploaded file is empty")
	}
	return nil
}

// Resolver produces the buffer for one channel.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (*media.Buffer, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, req Request) (*media.Buffer, error)

func (f ResolverFunc) Resolve(ctx context.Context, req Request) (*media.Buffer, error) {
	return f(ctx, req)
}

// acceptance says which kinds a channel hands downstream.
type acceptance struct {
	channel   string
	documents bool
	// lenient accepts unrecognised bytes as mp3.
	lenient bool
}

// settle decides the final kind for data. Signatures win; declared is only
// consulted when nothing matched.
func (a acceptance) settle(data []byte, declared media.Kind, source string) (*media.Buffer, error) {
	kind, sniffed := media.Detect(data, declared)

	switch {
	case kind == media.KindHTML:
		details := map[string]any{"source": source}
		if title := media.HTMLTitle(data); title != "" {
			details["title"] = title
		}
		return nil, apperr.New(apperr.KindUnsupported, a.channel+"_RETURNED_HTML_NOT_MEDIA",
			"the source returned an HTML page instead of media").WithDetails(details)
	case kind == media.KindHLS:
		return nil, apperr.New(apperr.KindUnsupported, a.channel+"_RETURNED_PLAYLIST_NOT_MEDIA",
			"the source returned a streaming playlist; only progressive media is supported").
			WithDetails(map[string]any{"source": source})
	case kind.IsDocument() && !a.documents:
		return nil, apperr.New(apperr.KindUnsupported, a.channel+"_RETURNED_DOCUMENT_NOT_MEDIA",
			"the source returned a document where audio was expected").
			WithDetails(map[string]any{"source": source})
	case kind.IsAudio() || kind.IsDocument():
		return media.NewBuffer(data, kind, sniffed, source), nil
	case a.lenient:
		return media.NewBuffer(data, media.KindMP3, false, source), nil
	}

	return nil, apperr.New(apperr.KindUnsupported, a.channel+"_UNRECOGNIZED_CONTENT",
		"could not recognise the content as audio or a supported document").
		WithDetails(map[string]any{"source": source, "size": len(data)})
}

// NormalizeURL trims raw, percent-encodes what a browser would, and accepts
// only absolute http(s) URLs.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", apperr.Validation(apperr.ReasonMissingURL, "url is required")
	}
	s = escapeStrayPercents(strings.ReplaceAll(s, " ", "%20"))

	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.Validation(apperr.ReasonInvalidURL, fmt.Sprintf("invalid url %q", raw))
	}
	return u.String(), nil
}

// escapeStrayPercents encodes '%' signs that do not start a valid escape so
// url.Parse accepts hand-typed links like "50%off.mp3".
func escapeStrayPercents(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && !(i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
