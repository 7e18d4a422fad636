package resolve

import (
	"context"
	"errors"
	"fmt"

	"mediaquiz/internal/apperr"
	"mediaquiz/internal/fetch"
	"mediaquiz/internal/media"
	"mediaquiz/internal/r2"
	"mediaquiz/internal/retry"
)

// ObjectStore opens objects by bucket and key.
type ObjectStore interface {
	Open(ctx context.Context, bucket, key string) (*r2.Object, error)
}

// Object resolves s3:// and r2:// references. A nil store leaves the channel
// unconfigured.
type Object struct {
	store    ObjectStore
	maxBytes int64
	policy   retry.Policy
	lenient  bool
}

func NewObject(store ObjectStore, maxBytes int64, policy retry.Policy, lenient bool) *Object {
	return &Object{store: store, maxBytes: maxBytes, policy: policy, lenient: lenient}
}

func (o *Object) Resolve(ctx context.Context, req Request) (*media.Buffer, error) {
	bucket, key, ok := r2.ParseObjectURL(req.URL)
	if !ok {
		return nil, apperr.Validation(apperr.ReasonInvalidURL, fmt.Sprintf("invalid object reference %q", req.URL))
	}
	if o.store == nil {
		return nil, apperr.New(apperr.KindConfiguration, apperr.ReasonObjectStoreUnconfigured,
			"object storage sources are not configured on this server")
	}

	obj, err := retry.Call(ctx, o.policy, func(ctx context.Context) (*r2.Object, error) {
		obj, err := o.store.Open(ctx, bucket, key)
		if err != nil {
			return nil, &retry.StatusError{Code: r2.StatusCode(err), Err: err}
		}
		return obj, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("open object: %w", ctx.Err())
		}
		return nil, apperr.FromStatus(r2.StatusCode(err), ChannelObject+"_"+apperr.ReasonFetchFailed, err)
	}
	if o.maxBytes > 0 && obj.ContentLength > o.maxBytes {
		_ = obj.Body.Close()
		return nil, fetch.TooLarge(o.maxBytes, obj.ContentLength)
	}

	data, err := media.Collect(ctx, obj.Body, o.maxBytes)
	if err != nil {
		var le *media.LimitError
		if errors.As(err, &le) {
			return nil, fetch.TooLarge(le.Limit, le.Read)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("read object: %w", ctx.Err())
		}
		return nil, apperr.FromStatus(0, ChannelObject+"_"+apperr.ReasonFetchFailed, err)
	}

	declared, ok := media.FromMIME(obj.ContentType)
	if !ok {
		declared, _ = media.FromExtension(key)
	}
	acc := acceptance{channel: ChannelObject, documents: true, lenient: o.lenient}
	return acc.settle(data, declared, req.URL)
}
