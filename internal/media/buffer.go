package media

// Buffer is fetched content plus the kind it was resolved to. It is owned by
// a single request and never mutated after construction.
type Buffer struct {
	data    []byte
	kind    Kind
	sniffed bool
	source  string
}

// NewBuffer wraps data. sniffed records whether kind was confirmed by a byte
// signature rather than taken from a header or filename.
func NewBuffer(data []byte, kind Kind, sniffed bool, source string) *Buffer {
	return &Buffer{data: data, kind: kind, sniffed: sniffed, source: source}
}

// Bytes returns the raw content. Callers must not modify it.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the content length.
func (b *Buffer) Len() int { return len(b.data) }

// Kind returns the resolved kind.
func (b *Buffer) Kind() Kind { return b.kind }

// Sniffed reports whether Kind came from signature inspection.
func (b *Buffer) Sniffed() bool { return b.sniffed }

// Source is the URL, object key or filename the bytes came from.
func (b *Buffer) Source() string { return b.source }

// MIMEType returns the canonical MIME string of Kind.
func (b *Buffer) MIMEType() string { return b.kind.MIMEType() }

// Filename is a synthetic name carrying the right extension for upload to
// collaborators that infer format from it.
func (b *Buffer) Filename() string {
	if b.kind.IsAudio() {
		return "audio." + b.kind.Ext()
	}
	return "document." + b.kind.Ext()
}
