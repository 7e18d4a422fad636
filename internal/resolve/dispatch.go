package resolve

import (
	"context"

	"mediaquiz/internal/media"
	"mediaquiz/internal/r2"
	"mediaquiz/internal/youtube"
)

// Dispatcher picks the channel for a request: uploads go to Upload, platform
// video URLs to Video, object references to Object, everything else to
// Direct.
type Dispatcher struct {
	Direct Resolver
	Upload Resolver
	Video  Resolver
	Object Resolver
}

// Channel names the resolver Resolve would use for req.
func (d *Dispatcher) Channel(req Request) string {
	switch {
	case req.Upload != nil:
		return ChannelUpload
	case youtube.IsVideoURL(req.URL):
		return ChannelVideo
	case r2.IsObjectURL(req.URL):
		return ChannelObject
	default:
		return ChannelDirect
	}
}

func (d *Dispatcher) Resolve(ctx context.Context, req Request) (*media.Buffer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var r Resolver
	switch d.Channel(req) {
	case ChannelUpload:
		r = d.Upload
	case ChannelVideo:
		r = d.Video
	case ChannelObject:
		r = d.Object
	default:
		r = d.Direct
	}
	return r.Resolve(ctx, req)
}
