package resolve

import (
	"context"
	"net/http"

	"mediaquiz/internal/fetch"
	"mediaquiz/internal/media"
)

// DirectConfig tunes a Direct resolver.
type DirectConfig struct {
	MaxBytes int64
	// AllowDocuments makes this the document-URL resolver: PDFs are accepted
	// and routed to text extraction downstream.
	AllowDocuments bool
	Lenient        bool
	// Channel is the reason-string prefix, ChannelDirect when empty.
	Channel string
}

// Direct resolves plain http(s) URLs through the bounded fetcher.
type Direct struct {
	fetcher *fetch.Fetcher
	cfg     DirectConfig
}

func NewDirect(f *fetch.Fetcher, cfg DirectConfig) *Direct {
	if cfg.Channel == "" {
		cfg.Channel = ChannelDirect
	}
	return &Direct{fetcher: f, cfg: cfg}
}

var directHeaders = http.Header{
	"Accept": {"audio/*, application/pdf;q=0.9, */*;q=0.5"},
}

func (d *Direct) Resolve(ctx context.Context, req Request) (*media.Buffer, error) {
	target, err := NormalizeURL(req.URL)
	if err != nil {
		return nil, err
	}

	res, err := d.fetcher.Fetch(ctx, target, directHeaders, d.cfg.MaxBytes)
	if err != nil {
		return nil, err
	}

	declared, _ := media.FromMIME(res.ContentType)
	acc := acceptance{channel: d.cfg.Channel, documents: d.cfg.AllowDocuments, lenient: d.cfg.Lenient}
	return acc.settle(res.Body, declared, target)
}
