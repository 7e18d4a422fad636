package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/fetch"
	"mediaquiz/internal/media"
	"mediaquiz/internal/retry"
)

// State is the position of a FallbackChain.
type State int

const (
	StatePrimary State = iota
	StateFallback
)

func (s State) String() string {
	if s == StateFallback {
		return "fallback"
	}
	return "primary"
}

// FallbackConfig describes the secondary resolution service. An empty
// Endpoint leaves the fallback unconfigured.
type FallbackConfig struct {
	Endpoint string
	Token    string
	MaxBytes int64
	Lenient  bool
}

// descriptor is the secondary service's reply.
type descriptor struct {
	DownloadURL string `json:"download_url"`
}

const descriptorLimit = 64 * 1024

// FallbackChain runs a primary resolver and, only when it fails with a rate
// limit, asks the secondary service for a direct download URL. Failures in
// the fallback state are final.
type FallbackChain struct {
	primary Resolver
	client  *http.Client
	fetcher *fetch.Fetcher
	policy  retry.Policy
	cfg     FallbackConfig
}

func NewFallbackChain(primary Resolver, client *http.Client, fetcher *fetch.Fetcher, policy retry.Policy, cfg FallbackConfig) *FallbackChain {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &FallbackChain{primary: primary, client: client, fetcher: fetcher, policy: policy, cfg: cfg}
}

func (c *FallbackChain) Resolve(ctx context.Context, req Request) (*media.Buffer, error) {
	buf, err := c.primary.Resolve(ctx, req)
	if err == nil {
		return buf, nil
	}
	if !apperr.IsRateLimited(err) {
		return nil, err
	}

	log.Printf("WARN: Video platform rate limited for %s, moving to %s state: %v", req.URL, StateFallback, err)
	buf, err = c.resolveFallback(ctx, req)
	if err != nil {
		log.Printf("ERROR: Fallback resolution failed for %s: %v", req.URL, err)
		return nil, err
	}
	return buf, nil
}

func (c *FallbackChain) resolveFallback(ctx context.Context, req Request) (*media.Buffer, error) {
	if c.cfg.Endpoint == "" {
		return nil, apperr.New(apperr.KindConfiguration, apperr.ReasonFallbackUnconfigured,
			"the video platform is rate limiting and no fallback service is configured").
			WithDetails(map[string]any{"state": StateFallback.String()})
	}

	payload, err := json.Marshal(map[string]string{"url": req.URL})
	if err != nil {
		return nil, fmt.Errorf("encode fallback request: %w", err)
	}

	resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
		if c.cfg.Token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}
		return c.client.Do(httpReq)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fallback request: %w", ctx.Err())
		}
		return nil, apperr.Wrap(apperr.KindTransientUpstream, apperr.ReasonFallbackFailed, err, "fallback service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, apperr.FromStatus(resp.StatusCode, apperr.ReasonFallbackFailed, fmt.Errorf("fallback service: %s", resp.Status)).
			WithDetails(map[string]any{"status": resp.StatusCode, "body": string(snippet)})
	}

	var desc descriptor
	if err := json.NewDecoder(io.LimitReader(resp.Body, descriptorLimit)).Decode(&desc); err != nil {
		return nil, apperr.Wrap(apperr.KindPermanentUpstream, apperr.ReasonFallbackFailed, err, "fallback service returned invalid JSON")
	}
	if desc.DownloadURL == "" {
		return nil, apperr.New(apperr.KindPermanentUpstream, apperr.ReasonFallbackFailed, "fallback service returned no download_url")
	}

	target, err := NormalizeURL(desc.DownloadURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPermanentUpstream, apperr.ReasonFallbackFailed, err, "fallback service returned an invalid download_url")
	}

	res, err := c.fetcher.Fetch(ctx, target, nil, c.cfg.MaxBytes)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindPayloadTooLarge {
			e, _ := apperr.As(err)
			return nil, apperr.New(apperr.KindPayloadTooLarge, apperr.ReasonAudioTooLarge, e.Message).WithDetails(e.Details)
		}
		return nil, err
	}

	declared, _ := media.FromMIME(res.ContentType)
	acc := acceptance{channel: ChannelFallback, lenient: c.cfg.Lenient}
	buf, err := acc.settle(res.Body, declared, req.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: Fallback resolved %s to %d bytes of %s", req.URL, buf.Len(), buf.Kind())
	return buf, nil
}
