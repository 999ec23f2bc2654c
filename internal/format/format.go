// Package format renders wiki event fields into Markdown-flavored text
// fragments. All functions are pure; configuration comes in through
// Options at construction time.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wikirelay/wikirelay/internal/domain/event"
)

// Ellipsis is appended to truncated text.
const Ellipsis = "..."

// Options holds the formatter knobs.
type Options struct {
	// SuppressPreviews wraps link URLs in angle brackets so the chat
	// client does not unfurl them.
	SuppressPreviews bool
	// MaxChars caps user-supplied free text; 0 disables truncation.
	MaxChars int
	// MaxCharsUsernames caps actor display names; 0 disables truncation.
	MaxCharsUsernames int
}

// Formatter renders text fragments under a fixed set of Options.
type Formatter struct {
	opts Options
}

// New creates a Formatter.
func New(opts Options) *Formatter {
	return &Formatter{opts: opts}
}

// MarkdownLink renders "[text](url)". The URL has literal spaces and
// parentheses percent-encoded, and is wrapped in angle brackets when
// preview suppression is on.
func (f *Formatter) MarkdownLink(text, url string) string {
	u := EscapeURL(url)
	if f.opts.SuppressPreviews {
		u = "<" + u + ">"
	}
	return "[" + text + "](" + u + ")"
}

// ActorLinks renders the composite link block for an actor: the primary
// link (contributions page for anonymous actors, profile page otherwise)
// followed by parenthesized talk and contributions shortcuts.
func (f *Formatter) ActorLinks(a event.Actor) string {
	name := Truncate(a.Name, f.opts.MaxCharsUsernames)

	primary := a.ProfileURL
	if a.Anonymous {
		primary = a.ContribsURL
	}

	return fmt.Sprintf("%s (%s|%s)",
		f.MarkdownLink(name, primary),
		f.MarkdownLink("talk", a.TalkURL),
		f.MarkdownLink("contribs", a.ContribsURL),
	)
}

// RevisionText renders the diff link, an optional minor marker, and the
// byte-size fragment for a revision. The size is a signed delta against
// the parent when the parent's size is known, and an absolute count
// otherwise.
func (f *Formatter) RevisionText(r event.Revision) string {
	var b strings.Builder
	b.WriteString(f.MarkdownLink("diff", r.DiffURL))
	if r.Minor {
		b.WriteString(" (minor)")
	}
	if r.ParentSize != nil {
		fmt.Fprintf(&b, " (%+d bytes)", r.Size-*r.ParentSize)
	} else {
		fmt.Fprintf(&b, " (%d bytes)", r.Size)
	}
	return b.String()
}

// CleanFragment truncates then sanitizes user-supplied free text.
// Sanitize runs last so a truncation boundary cannot reintroduce a
// partial mention sequence.
func (f *Formatter) CleanFragment(text string) string {
	return Sanitize(Truncate(text, f.opts.MaxChars))
}

// QuoteFragment renders cleaned free text inside backticks, or an empty
// string when the text is empty.
func (f *Formatter) QuoteFragment(text string) string {
	if text == "" {
		return ""
	}
	return "`" + f.CleanFragment(text) + "`"
}

// EscapeURL percent-encodes only literal spaces and parentheses.
// This narrow escape is deliberate: the inputs are already URLs, and
// those three characters are the ones that break Markdown link syntax.
func EscapeURL(url string) string {
	url = strings.ReplaceAll(url, " ", "%20")
	url = strings.ReplaceAll(url, "(", "%28")
	return strings.ReplaceAll(url, ")", "%29")
}

// Truncate hard-cuts text at max characters and appends an ellipsis
// marker. A max of 0 disables truncation.
func Truncate(text string, max int) string {
	if max > 0 && len(text) > max {
		return text[:max] + Ellipsis
	}
	return text
}

// Sanitize strips every backtick and @ from free text, preventing
// code-fence breakout and everyone/here/role mentions.
func Sanitize(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '`' || r == '@' {
			return -1
		}
		return r
	}, text)
}

// CollapseWhitespace reduces every whitespace run to a single space and
// trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FormatBytes converts a byte count to the largest unit in B..TB that
// keeps the scaled value at or above 1, rounded to precision decimal
// digits. Negative inputs clamp to 0.
func FormatBytes(n int64, precision int) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}

	if n < 0 {
		n = 0
	}

	pow := 0
	if n > 0 {
		pow = int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	}
	if pow > len(units)-1 {
		pow = len(units) - 1
	}

	scaled := float64(n) / float64(int64(1)<<(10*pow))
	factor := math.Pow(10, float64(precision))
	rounded := math.Round(scaled*factor) / factor

	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + units[pow]
}
