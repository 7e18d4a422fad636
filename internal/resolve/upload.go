package resolve

import (
	"context"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/fetch"
	"mediaquiz/internal/media"
)

// Upload resolves a buffer the caller already sent in the request body.
type Upload struct {
	MaxBytes int64
	Lenient  bool
}

// Resolve sniffs the bytes first; the filename extension is only a hint for
// content without a recognisable signature.
func (u *Upload) Resolve(ctx context.Context, req Request) (*media.Buffer, error) {
	if req.Upload == nil {
		return nil, apperr.Validation(apperr.ReasonMissingFile, "a file is required")
	}
	if len(req.Upload) == 0 {
		return nil, apperr.Validation(apperr.ReasonEmptyFile, "the uploaded file is empty")
	}
	if u.MaxBytes > 0 && int64(len(req.Upload)) > u.MaxBytes {
		return nil, fetch.TooLarge(u.MaxBytes, int64(len(req.Upload)))
	}

	hint, _ := media.FromExtension(req.Filename)
	source := req.Filename
	if source == "" {
		source = "upload"
	}
	acc := acceptance{channel: ChannelUpload, documents: true, lenient: u.Lenient}
	return acc.settle(req.Upload, hint, source)
}
