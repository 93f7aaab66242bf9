package mailbox

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestDecodeBase64(t *testing.T) {
	want := "Hello, world! Ünïcödé"
	raw := base64.StdEncoding.EncodeToString([]byte(want))

	if got := Decode([]byte(raw), "base64"); got != want {
		t.Errorf("Decode base64 = %q, want %q", got, want)
	}
}

func TestDecodeBase64WithLineBreaks(t *testing.T) {
	want := strings.Repeat("attachment payload ", 20)
	enc := base64.StdEncoding.EncodeToString([]byte(want))

	// Servers wrap encoded content at 76 columns
	var wrapped strings.Builder
	for i := 0; i < len(enc); i += 76 {
		end := i + 76
		if end > len(enc) {
			end = len(enc)
		}
		wrapped.WriteString(enc[i:end])
		wrapped.WriteString("\r\n")
	}

	if got := Decode([]byte(wrapped.String()), "base64"); got != want {
		t.Errorf("Decode wrapped base64 = %q, want %q", got, want)
	}
}

func TestDecodeBase64MissingPadding(t *testing.T) {
	want := "hi there"
	enc := strings.TrimRight(base64.StdEncoding.EncodeToString([]byte(want)), "=")

	if got := Decode([]byte(enc), "base64"); got != want {
		t.Errorf("Decode unpadded base64 = %q, want %q", got, want)
	}
}

func TestDecodeBase64InvalidFallsBackToRaw(t *testing.T) {
	raw := "!!! not base64 at all !!!"
	if got := Decode([]byte(raw), "base64"); got != raw {
		t.Errorf("Decode invalid base64 = %q, want raw input back", got)
	}
}

func TestDecodeQuotedPrintable(t *testing.T) {
	raw := "Gr=C3=BC=C3=9Fe aus M=C3=BCnchen=0D=0ASecond line"
	want := "Grüße aus München\r\nSecond line"

	if got := Decode([]byte(raw), "quoted-printable"); got != want {
		t.Errorf("Decode quoted-printable = %q, want %q", got, want)
	}
}

func TestDecodeQuotedPrintableSoftBreak(t *testing.T) {
	raw := "one long li=\r\nne"
	want := "one long line"

	if got := Decode([]byte(raw), "quoted-printable"); got != want {
		t.Errorf("Decode soft break = %q, want %q", got, want)
	}
}

func TestDecodeUnknownEncodingReturnsRaw(t *testing.T) {
	for _, enc := range []string{"", "7bit", "8bit", "binary", "x-custom"} {
		raw := "plain text body"
		if got := Decode([]byte(raw), enc); got != raw {
			t.Errorf("Decode(%q encoding) = %q, want raw text", enc, got)
		}
	}
}

func TestDecodeStripsLeadingHeaders(t *testing.T) {
	raw := "Content-Type: text/plain; charset=utf-8\r\nContent-Transfer-Encoding: 7bit\r\n\r\nactual body text"

	if got := Decode([]byte(raw), "7bit"); got != "actual body text" {
		t.Errorf("Decode with header block = %q, want body only", got)
	}
}

func TestDecodeKeepsBodyWithColonFirstLine(t *testing.T) {
	// A body whose first line contains a colon after a space is not a header
	raw := "Dear customer: we got your note\n\nmore body"

	if got := Decode([]byte(raw), "7bit"); got != raw {
		t.Errorf("Decode = %q, want input unchanged", got)
	}
}

func TestDecodeBytesBase64Binary(t *testing.T) {
	want := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0xff, 0xfe}
	enc := base64.StdEncoding.EncodeToString(want)

	got := DecodeBytes([]byte(enc), "base64")
	if !bytes.Equal(got, want) {
		t.Errorf("DecodeBytes base64 = %v, want original binary", got)
	}
}

func TestDecodeBytesKeepsHeaderLookingPrefix(t *testing.T) {
	// Binary decoding must never strip anything, even when the payload
	// happens to look like a header block
	raw := []byte("X-Looks-Like: a header\r\n\r\npayload")

	if got := DecodeBytes(raw, "7bit"); !bytes.Equal(got, raw) {
		t.Errorf("DecodeBytes = %q, want input untouched", got)
	}
}

func TestDecodeBytesQuotedPrintable(t *testing.T) {
	raw := []byte("data=20with=00null")
	want := []byte("data with\x00null")

	if got := DecodeBytes(raw, "quoted-printable"); !bytes.Equal(got, want) {
		t.Errorf("DecodeBytes qp = %q, want %q", got, want)
	}
}

func TestDecodeBytesInvalidBase64FallsBack(t *testing.T) {
	raw := []byte("!!! not encoded !!!")
	if got := DecodeBytes(raw, "base64"); !bytes.Equal(got, raw) {
		t.Errorf("DecodeBytes = %q, want raw fallback", got)
	}
}

func TestDecodeNeverPanics(t *testing.T) {
	encodings := []string{"base64", "quoted-printable", "7bit", "8bit", ""}

	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.Byte(), 0, 2048).Draw(t, "raw")
		enc := rapid.SampledFrom(encodings).Draw(t, "encoding")
		_ = Decode(raw, enc)
	})
}

func TestDecodeBase64RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Printable content without a leading header-shaped line
		want := "x" + rapid.StringMatching(`[ -~]{0,200}`).Draw(t, "text")
		enc := base64.StdEncoding.EncodeToString([]byte(want))

		if got := Decode([]byte(enc), "base64"); got != want {
			t.Fatalf("round trip = %q, want %q", got, want)
		}
	})
}
