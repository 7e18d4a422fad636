package media

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func pad(prefix []byte) []byte {
	out := make([]byte, 32)
	copy(out, prefix)
	return out
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Kind
		ok   bool
	}{
		{"pdf", pad([]byte{0x25, 0x50, 0x44, 0x46, '-', '1', '.', '4'}), KindPDF, true},
		{"id3", pad([]byte{0x49, 0x44, 0x33, 0x04}), KindMP3, true},
		{"frame sync", pad([]byte{0xFF, 0xFB, 0x90, 0x64}), KindMP3, true},
		{"webm", pad([]byte{0x1A, 0x45, 0xDF, 0xA3}), KindWebM, true},
		{"ftyp", pad([]byte{0, 0, 0, 0x20, 'f', 't', 'y', 'p', 'M', '4', 'A', ' '}), KindMP4, true},
		{"wav", pad([]byte("RIFF\x24\x08\x00\x00WAVEfmt ")), KindWAV, true},
		{"hls", []byte("#EXTM3U\n#EXT-X-VERSION:3\n"), KindHLS, true},
		{"doctype", []byte("<!DOCTYPE html><html><head>"), KindHTML, true},
		{"html tag", []byte("<html lang=\"en\"><head></head>"), KindHTML, true},
		{"html after whitespace", []byte("\n\n  <!doctype html><html>"), KindHTML, true},
		{"riff without wave", pad([]byte("RIFF\x24\x08\x00\x00AVI LIST")), KindUnknown, false},
		{"plain text", []byte("just some words in a file"), KindUnknown, false},
		{"zeros", make([]byte, 64), KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Sniff(tt.data)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Sniff() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSniff_ShortBuffers(t *testing.T) {
	for n := 0; n < MinSniffLen; n++ {
		data := pad([]byte("%PDF-1.7 ID3"))[:n]
		if k, ok := Sniff(data); ok || k != KindUnknown {
			t.Errorf("len %d: Sniff() = (%q, %v), want no match", n, k, ok)
		}
	}
	if _, ok := Sniff(nil); ok {
		t.Error("Sniff(nil) matched")
	}
}

func TestDetect_IgnoresDeclaredTypeWhenSignatureMatches(t *testing.T) {
	id3 := pad([]byte("ID3"))
	for _, declared := range []Kind{KindHTML, KindPDF, KindWebM, KindUnknown, ""} {
		kind, sniffed := Detect(id3, declared)
		if kind != KindMP3 || !sniffed {
			t.Errorf("declared %q: Detect() = (%q, %v), want (mp3, true)", declared, kind, sniffed)
		}
	}
}

func TestDetect_FallsBackToDeclared(t *testing.T) {
	kind, sniffed := Detect([]byte("no signature here at all"), KindWebM)
	if kind != KindWebM || sniffed {
		t.Errorf("Detect() = (%q, %v), want (webm, false)", kind, sniffed)
	}
	kind, _ = Detect([]byte("short"), "")
	if kind != KindUnknown {
		t.Errorf("Detect() with no declared kind = %q, want unknown", kind)
	}
}

func TestID3MapsToAudioMPEG(t *testing.T) {
	kind, ok := Sniff(pad([]byte{0x49, 0x44, 0x33}))
	if !ok || kind != KindMP3 {
		t.Fatalf("Sniff() = (%q, %v)", kind, ok)
	}
	if kind.MIMEType() != "audio/mpeg" {
		t.Errorf("MIMEType() = %q, want audio/mpeg", kind.MIMEType())
	}
}

func TestFromMIME(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"audio/mpeg", KindMP3, true},
		{"audio/webm; codecs=opus", KindWebM, true},
		{"Audio/MP4", KindMP4, true},
		{"audio/x-wav", KindWAV, true},
		{"application/pdf", KindPDF, true},
		{"text/html; charset=utf-8", KindHTML, true},
		{"application/vnd.apple.mpegurl", KindHLS, true},
		{"application/octet-stream", KindUnknown, false},
		{"", KindUnknown, false},
	}
	for _, tt := range tests {
		got, ok := FromMIME(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("FromMIME(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFromExtension(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"lecture.MP3", KindMP3, true},
		{"voice.m4a", KindMP4, true},
		{"m4a", KindMP4, true},
		{".wav", KindWAV, true},
		{"notes.pdf", KindPDF, true},
		{"archive.zip", KindUnknown, false},
		{"", KindUnknown, false},
	}
	for _, tt := range tests {
		got, ok := FromExtension(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("FromExtension(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHTMLTitle(t *testing.T) {
	page := []byte("<!doctype html><html><head><title>\n  429 Too Many\n Requests </title></head><body>x</body></html>")
	if got := HTMLTitle(page); got != "429 Too Many Requests" {
		t.Errorf("HTMLTitle() = %q", got)
	}
	if got := HTMLTitle([]byte("<html><body>no title</body></html>")); got != "" {
		t.Errorf("HTMLTitle() without title = %q", got)
	}
}

func TestHTMLTitle_TruncatesByRune(t *testing.T) {
	long := strings.Repeat("ã", maxTitleLen+10)
	got := HTMLTitle([]byte("<html><head><title>" + long + "</title></head></html>"))
	if !utf8.ValidString(got) || utf8.RuneCountInString(got) != maxTitleLen {
		t.Errorf("HTMLTitle() = %d runes, valid=%v", utf8.RuneCountInString(got), utf8.ValidString(got))
	}
}
