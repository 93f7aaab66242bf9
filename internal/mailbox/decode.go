package mailbox

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"strings"
)

// headerScanWindow bounds how far into the buffer a leading header block is
// looked for. Some retrieval paths return headers inline with the body.
const headerScanWindow = 500

// Decode converts a raw part buffer into text per its declared transfer
// encoding. It is total: malformed input falls back to naive UTF-8
// interpretation of the raw bytes and never produces an error.
func Decode(raw []byte, encoding string) string {
	raw = stripLeadingHeaders(raw)

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return decodeBase64(raw)
	case "quoted-printable":
		return decodeQuotedPrintable(raw)
	default:
		// 7bit, 8bit, binary or unknown: the buffer is the text
		return string(raw)
	}
}

// DecodeBytes converts a raw part buffer into its original bytes per the
// declared transfer encoding. Unlike Decode it never strips headers and
// never reinterprets the payload as text, so it is safe for binary
// attachments. Malformed input falls back to the raw bytes.
func DecodeBytes(raw []byte, encoding string) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return []byte(decodeBase64(raw))
	case "quoted-printable":
		return []byte(decodeQuotedPrintable(raw))
	default:
		return raw
	}
}

func decodeBase64(raw []byte) string {
	compact := make([]byte, 0, len(raw))
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
		default:
			compact = append(compact, b)
		}
	}
	decoded, err := base64.StdEncoding.DecodeString(string(compact))
	if err != nil {
		// Tolerate missing padding before giving up
		if decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(string(compact), "=")); err != nil {
			return string(raw)
		}
	}
	return string(decoded)
}

func decodeQuotedPrintable(raw []byte) string {
	decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw)))
	if err != nil && len(decoded) == 0 {
		return string(raw)
	}
	// A mid-stream error still leaves usable prefix text
	return string(decoded)
}

// stripLeadingHeaders removes a MIME/protocol header block when one precedes
// the content, detected by the first blank-line boundary within the scan
// window. The buffer is returned unchanged when no such block is found.
func stripLeadingHeaders(raw []byte) []byte {
	window := raw
	if len(window) > headerScanWindow {
		window = window[:headerScanWindow]
	}

	idx := bytes.Index(window, []byte("\r\n\r\n"))
	skip := 4
	if idx < 0 {
		idx = bytes.Index(window, []byte("\n\n"))
		skip = 2
	}
	if idx <= 0 {
		return raw
	}

	// Only treat the prefix as headers if its first line looks like one
	firstLine := window[:idx]
	if nl := bytes.IndexByte(firstLine, '\n'); nl >= 0 {
		firstLine = firstLine[:nl]
	}
	colon := bytes.IndexByte(firstLine, ':')
	if colon <= 0 || bytes.ContainsAny(firstLine[:colon], " \t") {
		return raw
	}

	return raw[idx+skip:]
}
