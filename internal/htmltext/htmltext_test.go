package htmltext

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestTextBasicMarkup(t *testing.T) {
	c := NewConverter()

	got := c.Text("<html><body><p>Hello</p><p>Your order <b>SD-104233</b> shipped</p></body></html>")
	if !strings.Contains(got, "Hello") {
		t.Errorf("Text() = %q, missing first paragraph", got)
	}
	if !strings.Contains(got, "Your order SD-104233 shipped") {
		t.Errorf("Text() = %q, inline markup not flattened", got)
	}
}

func TestTextDropsScriptAndStyle(t *testing.T) {
	c := NewConverter()

	got := c.Text(`<style>.x{color:red}</style><script>alert("hi")</script><p>visible</p>`)
	if strings.Contains(got, "alert") || strings.Contains(got, "color") {
		t.Errorf("Text() = %q, script/style content leaked", got)
	}
	if !strings.Contains(got, "visible") {
		t.Errorf("Text() = %q, lost body text", got)
	}
}

func TestTextBlockElementsSeparateLines(t *testing.T) {
	c := NewConverter()

	got := c.Text("<div>first</div><div>second</div>")
	if !strings.Contains(got, "first\nsecond") {
		t.Errorf("Text() = %q, blocks ran together", got)
	}
}

func TestTextStripsInvisibleCharacters(t *testing.T) {
	c := NewConverter()

	got := c.Text("<p>SD​-104233</p>")
	if !strings.Contains(got, "SD-104233") {
		t.Errorf("Text() = %q, zero-width space not removed", got)
	}
}

func TestTextEmptyInput(t *testing.T) {
	c := NewConverter()
	if got := c.Text(""); got != "" {
		t.Errorf("Text(\"\") = %q", got)
	}
}

func TestTextNeverPanics(t *testing.T) {
	c := NewConverter()
	rapid.Check(t, func(t *rapid.T) {
		html := rapid.String().Draw(t, "html")
		out := c.Text(html)
		if out != strings.TrimSpace(out) {
			t.Fatalf("output not trimmed: %q", out)
		}
	})
}
