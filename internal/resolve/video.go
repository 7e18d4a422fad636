package resolve

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/media"
	"mediaquiz/internal/retry"
	"mediaquiz/internal/youtube"
)

// Video resolves streaming-platform URLs by downloading the best audio-only
// rendition. The download is consumed as a chunk stream so the ceiling is
// enforced while bytes arrive.
type Video struct {
	platform youtube.Platform
	maxBytes int64
	policy   retry.Policy
}

func NewVideo(p youtube.Platform, maxBytes int64, policy retry.Policy) *Video {
	return &Video{platform: p, maxBytes: maxBytes, policy: policy}
}

func (v *Video) Resolve(ctx context.Context, req Request) (*media.Buffer, error) {
	video, err := retry.Call(ctx, v.policy, func(ctx context.Context) (*youtube.Video, error) {
		video, err := v.platform.Lookup(ctx, req.URL)
		return video, retry.Classify(err)
	})
	if err != nil {
		return nil, err
	}

	best, ok := youtube.SelectBest(video.Renditions)
	if !ok {
		return nil, apperr.New(apperr.KindPermanentUpstream, apperr.ReasonNoAudioRendition,
			fmt.Sprintf("video %s has no audio-only rendition", video.ID))
	}
	if v.maxBytes > 0 && best.ContentLength > v.maxBytes {
		return nil, v.tooLarge(best.ContentLength)
	}
	log.Printf("INFO: Selected rendition itag=%d (%s, %d bps) for video %s", best.Itag, best.MIMEType, best.Bitrate, video.ID)

	// Open and read form one attempt: the platform reports throttling while
	// the stream is read, not when it is opened.
	data, err := retry.Call(ctx, v.policy, func(ctx context.Context) ([]byte, error) {
		data, err := v.download(ctx, video, best)
		return data, retry.Classify(err)
	})
	if err != nil {
		return nil, err
	}

	kind, ok := media.Sniff(data)
	if !ok || !kind.IsAudio() {
		return nil, apperr.New(apperr.KindUnsupported, apperr.ReasonInvalidBytes,
			"downloaded rendition is not recognisable audio").
			WithDetails(map[string]any{"video": video.ID, "itag": best.Itag, "sniffed": string(kind)})
	}
	return media.NewBuffer(data, kind, true, req.URL), nil
}

func (v *Video) download(ctx context.Context, video *youtube.Video, best youtube.Rendition) ([]byte, error) {
	rc, size, err := v.platform.Open(ctx, video, best)
	if err != nil {
		return nil, err
	}
	if v.maxBytes > 0 && size > v.maxBytes {
		_ = rc.Close()
		return nil, v.tooLarge(size)
	}

	data, err := media.Collect(ctx, rc, v.maxBytes)
	if err != nil {
		var le *media.LimitError
		if errors.As(err, &le) {
			return nil, v.tooLarge(le.Read)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("download video %s: %w", video.ID, ctx.Err())
		}
		return nil, youtube.Classify(err, "download "+video.ID)
	}
	return data, nil
}

func (v *Video) tooLarge(seen int64) error {
	return apperr.New(apperr.KindPayloadTooLarge, apperr.ReasonAudioTooLarge,
		fmt.Sprintf("audio exceeds the %d byte limit", v.maxBytes)).
		WithDetails(map[string]any{"limit": v.maxBytes, "received": seen})
}
