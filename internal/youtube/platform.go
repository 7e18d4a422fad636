package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	yt "github.com/kkdai/youtube/v2"

	"mediaquiz/internal/apperr"
)

const (
	RE_YOUTUBE = `(?:youtube\.com\/(?:[^\/]+\/.+\/|(?:v|e(?:mbed)?)\/|shorts\/|.*[?&]v=)|youtu\.be\/)([^"&?\/\s]{11})`
)

var videoIDRe = regexp.MustCompile(RE_YOUTUBE)

// Rendition is one downloadable audio-only stream of a video.
type Rendition struct {
	Itag          int
	MIMEType      string
	Bitrate       int
	ContentLength int64
}

// Video is the platform metadata needed to pick and open a rendition.
type Video struct {
	ID         string
	Title      string
	Duration   time.Duration
	Renditions []Rendition

	raw *yt.Video
}

// Platform lists and opens audio renditions. The resolver depends on this
// interface so tests can script platform failures.
type Platform interface {
	Lookup(ctx context.Context, url string) (*Video, error)
	Open(ctx context.Context, v *Video, r Rendition) (io.ReadCloser, int64, error)
}

// Client is the Platform backed by github.com/kkdai/youtube.
type Client struct {
	yt *yt.Client
}

func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{yt: &yt.Client{HTTPClient: httpClient}}
}

// Lookup fetches video metadata and keeps only audio-only formats.
func (c *Client) Lookup(ctx context.Context, url string) (*Video, error) {
	id, err := VideoID(url)
	if err != nil {
		return nil, apperr.Validation(apperr.ReasonInvalidURL, err.Error())
	}

	v, err := c.yt.GetVideoContext(ctx, id)
	if err != nil {
		return nil, Classify(err, "lookup video "+id)
	}

	renditions := audioRenditions(v.Formats)
	log.Printf("INFO: Video %s (%q) has %d formats, %d audio-only", v.ID, v.Title, len(v.Formats), len(renditions))
	return &Video{
		ID:         v.ID,
		Title:      v.Title,
		Duration:   v.Duration,
		Renditions: renditions,
		raw:        v,
	}, nil
}

// Open starts downloading r. The returned size is the platform's announced
// length, 0 when unknown.
func (c *Client) Open(ctx context.Context, v *Video, r Rendition) (io.ReadCloser, int64, error) {
	if v == nil || v.raw == nil {
		return nil, 0, fmt.Errorf("open itag %d: video was not looked up through this client", r.Itag)
	}
	formats := v.raw.Formats.Itag(r.Itag)
	if len(formats) == 0 {
		return nil, 0, apperr.New(apperr.KindPermanentUpstream, apperr.ReasonNoAudioRendition,
			fmt.Sprintf("itag %d not found for video %s", r.Itag, v.ID))
	}
	format := &formats[0]
	rc, size, err := c.yt.GetStreamContext(ctx, v.raw, format)
	if err != nil {
		return nil, 0, Classify(err, "open stream for "+v.ID)
	}
	return rc, size, nil
}

// VideoID extracts the 11-character id from a watch, share, embed or shorts
// URL. A bare id is accepted as is.
func VideoID(url string) (string, error) {
	if len(url) == 11 && !strings.ContainsAny(url, "/.:?&") {
		return url, nil
	}
	match := videoIDRe.FindStringSubmatch(url)
	if match != nil {
		return match[1], nil
	}
	return "", fmt.Errorf("invalid YouTube URL or video ID")
}

// IsVideoURL reports whether url points at the streaming-video platform.
func IsVideoURL(url string) bool {
	return videoIDRe.MatchString(url)
}

// SelectBest picks the rendition with the highest reported bitrate. Ties and
// renditions without a bitrate keep platform order.
func SelectBest(renditions []Rendition) (Rendition, bool) {
	if len(renditions) == 0 {
		return Rendition{}, false
	}
	sorted := make([]Rendition, len(renditions))
	copy(sorted, renditions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Bitrate > sorted[j].Bitrate
	})
	return sorted[0], true
}

func audioRenditions(formats yt.FormatList) []Rendition {
	var out []Rendition
	for _, f := range formats {
		if f.AudioChannels <= 0 || !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		bitrate := f.Bitrate
		if bitrate == 0 {
			bitrate = f.AverageBitrate
		}
		out = append(out, Rendition{
			Itag:          f.ItagNo,
			MIMEType:      f.MimeType,
			Bitrate:       bitrate,
			ContentLength: f.ContentLength,
		})
	}
	return out
}

// classify maps platform SDK failures onto the error taxonomy. The SDK only
// sometimes exposes the status as a typed error, so the message is checked
// for a 429 marker as well.
func Classify(err error, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	status := 0
	var code yt.ErrUnexpectedStatusCode
	if errors.As(err, &code) {
		status = int(code)
	}
	msg := strings.ToLower(err.Error())
	if status == 0 && (strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")) {
		status = http.StatusTooManyRequests
	}

	switch {
	case status == http.StatusTooManyRequests:
		return apperr.Wrap(apperr.KindTransientUpstream, apperr.ReasonPlatformRateLimited, err, op+": rate limited by platform").
			WithStatus(status)
	case status >= 500:
		return apperr.Wrap(apperr.KindTransientUpstream, apperr.ReasonPlatformFailed, err, op).WithStatus(status)
	default:
		return apperr.Wrap(apperr.KindPermanentUpstream, apperr.ReasonPlatformFailed, err, op).WithStatus(status)
	}
}
