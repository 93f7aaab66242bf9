package mailbox

import (
	"mime"
	"path/filepath"
	"strings"
)

// Part is one node of a message's declared body structure. Multipart
// containers have children; leaves carry encoding and size.
type Part struct {
	Type        string // e.g. "text", "image", "multipart"
	Subtype     string // e.g. "plain", "html", "mixed"
	Encoding    string // Declared transfer encoding
	Disposition string // "attachment", "inline" or empty
	Params      map[string]string
	DispParams  map[string]string
	Size        uint32
	ContentID   string
	Children    []*Part
}

// IsMultipart reports whether the part is a container of nested parts
func (p *Part) IsMultipart() bool {
	return strings.EqualFold(p.Type, "multipart")
}

// IsTextBody reports whether the part is a body candidate: exactly
// plain text or markup text.
func (p *Part) IsTextBody() bool {
	if !strings.EqualFold(p.Type, "text") {
		return false
	}
	return strings.EqualFold(p.Subtype, "plain") || strings.EqualFold(p.Subtype, "html")
}

// IsHTML reports whether the part is markup text
func (p *Part) IsHTML() bool {
	return strings.EqualFold(p.Type, "text") && strings.EqualFold(p.Subtype, "html")
}

// Filename returns the declared filename from the content-disposition
// parameters or, failing that, the content-type name parameter. Servers are
// inconsistent about which one they populate.
func (p *Part) Filename() string {
	if name := paramValue(p.DispParams, "filename"); name != "" {
		return name
	}
	return paramValue(p.Params, "name")
}

// IsAttachment classifies the part as attachment-like. A filename must be
// present somewhere; without one the part is body content, not an attachment.
func (p *Part) IsAttachment() bool {
	if p.IsMultipart() || p.Filename() == "" {
		return false
	}
	switch strings.ToLower(p.Disposition) {
	case "attachment", "inline":
		return true
	}
	if strings.EqualFold(p.Type, "image") {
		return true
	}
	return !strings.EqualFold(p.Type, "text")
}

// ResolveContentType returns the part's media type, inferring it from the
// filename extension when the protocol metadata is missing or generic.
func (p *Part) ResolveContentType() string {
	t := strings.ToLower(strings.TrimSpace(p.Type))
	st := strings.ToLower(strings.TrimSpace(p.Subtype))
	if t != "" && st != "" {
		return t + "/" + st
	}
	if name := p.Filename(); name != "" {
		if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
			// Strip parameters like "; charset=utf-8"
			if i := strings.IndexByte(byExt, ';'); i >= 0 {
				byExt = byExt[:i]
			}
			return strings.TrimSpace(byExt)
		}
	}
	return "application/octet-stream"
}

// CollectAttachments walks the part tree and emits a descriptor for every
// attachment-like leaf. Descriptors carry part paths (1-based per level) so
// bytes can be retrieved later; message identity fields are left for the
// caller to fill in.
func CollectAttachments(root *Part) []AttachmentDescriptor {
	if root == nil {
		return nil
	}
	var out []AttachmentDescriptor
	walkParts(root, nil, func(p *Part, path []int) {
		if !p.IsAttachment() {
			return
		}
		out = append(out, AttachmentDescriptor{
			Path:        append([]int(nil), path...),
			Filename:    p.Filename(),
			ContentType: p.ResolveContentType(),
			Encoding:    p.Encoding,
			Size:        p.Size,
			Inline:      strings.EqualFold(p.Disposition, "inline"),
			ContentID:   p.ContentID,
		})
	})
	return out
}

// FindBodyPart returns the preferred text leaf and its part path. A markup
// leaf wins over a plain-text leaf when both exist. Returns nil when the tree
// has no body candidate.
func FindBodyPart(root *Part) (*Part, []int) {
	if root == nil {
		return nil, nil
	}
	var plain, html *Part
	var plainPath, htmlPath []int
	walkParts(root, nil, func(p *Part, path []int) {
		if !p.IsTextBody() || p.IsAttachment() {
			return
		}
		if p.IsHTML() {
			if html == nil {
				html = p
				htmlPath = append([]int(nil), path...)
			}
		} else if plain == nil {
			plain = p
			plainPath = append([]int(nil), path...)
		}
	})
	if html != nil {
		return html, htmlPath
	}
	return plain, plainPath
}

// walkParts visits every leaf of the tree in declaration order. The path of
// a top-level single-part message is empty; children get 1-based indices.
func walkParts(p *Part, path []int, visit func(*Part, []int)) {
	if p.IsMultipart() {
		for i, child := range p.Children {
			walkParts(child, append(path, i+1), visit)
		}
		return
	}
	visit(p, path)
}

func paramValue(params map[string]string, key string) string {
	for k, v := range params {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
