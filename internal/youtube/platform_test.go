package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	yt "github.com/kkdai/youtube/v2"

	"mediaquiz/internal/apperr"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://example.com/audio.mp3", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := VideoID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("VideoID(%q) = (%q, %v), want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestIsVideoURL(t *testing.T) {
	if !IsVideoURL("https://youtu.be/dQw4w9WgXcQ") {
		t.Error("short link not recognised")
	}
	if IsVideoURL("https://cdn.example.com/watch?v=dQw4w9WgXcQ.mp3") {
		t.Error("non-platform host recognised")
	}
}

func TestAudioRenditions(t *testing.T) {
	formats := yt.FormatList{
		{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, AudioChannels: 2, Bitrate: 500000},
		{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, AudioChannels: 2, Bitrate: 130000},
		{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, AudioChannels: 2, AverageBitrate: 160000},
		{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`},
	}
	got := audioRenditions(formats)
	if len(got) != 2 {
		t.Fatalf("got %d renditions, want 2: %+v", len(got), got)
	}
	if got[1].Itag != 251 || got[1].Bitrate != 160000 {
		t.Errorf("average bitrate not used: %+v", got[1])
	}
}

func TestSelectBest(t *testing.T) {
	best, ok := SelectBest([]Rendition{
		{Itag: 139, Bitrate: 48000},
		{Itag: 251, Bitrate: 160000},
		{Itag: 140, Bitrate: 130000},
	})
	if !ok || best.Itag != 251 {
		t.Errorf("SelectBest = %+v, %v", best, ok)
	}

	best, ok = SelectBest([]Rendition{{Itag: 1}, {Itag: 2}})
	if !ok || best.Itag != 1 {
		t.Errorf("without bitrates = %+v, want first", best)
	}

	if _, ok := SelectBest(nil); ok {
		t.Error("SelectBest(nil) reported a rendition")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   apperr.Kind
		reason string
	}{
		{"typed 429", fmt.Errorf("get player: %w", yt.ErrUnexpectedStatusCode(429)), apperr.KindTransientUpstream, apperr.ReasonPlatformRateLimited},
		{"429 in message", errors.New("unexpected status code: 429"), apperr.KindTransientUpstream, apperr.ReasonPlatformRateLimited},
		{"server error", yt.ErrUnexpectedStatusCode(503), apperr.KindTransientUpstream, apperr.ReasonPlatformFailed},
		{"unavailable", errors.New("this video is unavailable"), apperr.KindPermanentUpstream, apperr.ReasonPlatformFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.err, "lookup")
			if apperr.KindOf(err) != tt.kind || apperr.ReasonOf(err) != tt.reason {
				t.Errorf("classify = %v (%s/%s)", err, apperr.KindOf(err), apperr.ReasonOf(err))
			}
		})
	}
	if !apperr.IsRateLimited(Classify(yt.ErrUnexpectedStatusCode(429), "open")) {
		t.Error("typed 429 not rate limited")
	}
}

// refusingTransport fails every request so tests stay off the network.
type refusingTransport struct{ calls int }

func (r *refusingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	r.calls++
	return nil, errors.New("network disabled in tests")
}

func TestClientOpen(t *testing.T) {
	transport := &refusingTransport{}
	c := New(&http.Client{Transport: transport})
	video := &Video{
		ID: "dQw4w9WgXcQ",
		raw: &yt.Video{
			ID: "dQw4w9WgXcQ",
			Formats: yt.FormatList{
				{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, AudioChannels: 2},
				{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, AudioChannels: 2},
			},
		},
	}

	_, _, err := c.Open(context.Background(), video, Rendition{Itag: 140})
	if apperr.ReasonOf(err) != apperr.ReasonNoAudioRendition {
		t.Errorf("unknown itag: err = %v", err)
	}
	if transport.calls != 0 {
		t.Errorf("unknown itag made %d requests", transport.calls)
	}

	// itag 251 exists but carries neither a URL nor a cipher, so the SDK
	// refuses it before downloading anything.
	_, _, err = c.Open(context.Background(), video, Rendition{Itag: 251})
	if apperr.ReasonOf(err) != apperr.ReasonPlatformFailed {
		t.Errorf("unusable format: err = %v", err)
	}

	if _, _, err := c.Open(context.Background(), &Video{ID: "x"}, Rendition{Itag: 251}); err == nil {
		t.Error("video without platform metadata opened")
	}
}

func TestClassify_ReadPhase(t *testing.T) {
	// A throttled chunk surfaces on Read of the open stream.
	err := Classify(fmt.Errorf("read stream: %w", yt.ErrUnexpectedStatusCode(429)), "download dQw4w9WgXcQ")
	if !apperr.IsRateLimited(err) || apperr.ReasonOf(err) != apperr.ReasonPlatformRateLimited {
		t.Errorf("read-phase 429 = %v", err)
	}
}
