// Package render turns a wiki Event into the notification message text.
// Optional fragments (missing reason, missing revision, missing parent)
// are omitted, never replaced with placeholders.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/wikirelay/wikirelay/internal/config"
	"github.com/wikirelay/wikirelay/internal/domain/event"
	"github.com/wikirelay/wikirelay/internal/format"
)

// expiryLayouts are tried in order when parsing a block expiry string.
// The second entry is the wiki's own 14-digit timestamp form.
var expiryLayouts = []string{
	time.RFC3339,
	"20060102150405",
	"2006-01-02 15:04:05",
}

// Renderer builds messages for every event kind.
type Renderer struct {
	f               *format.Formatter
	blockTimeFormat string
}

// New creates a Renderer from the format config.
func New(cfg config.Format) *Renderer {
	return &Renderer{
		f: format.New(format.Options{
			SuppressPreviews:  cfg.SuppressPreviews,
			MaxChars:          cfg.MaxChars,
			MaxCharsUsernames: cfg.MaxCharsUsernames,
		}),
		blockTimeFormat: cfg.BlockTimeFormat,
	}
}

// Message renders the event. The second return is false when the kind is
// outside the closed set, in which case the string is empty.
func (r *Renderer) Message(ev event.Event) (string, bool) {
	var parts []string

	switch ev.Kind {
	case event.KindPageSaved:
		parts = []string{r.actor(ev.Actor), "edited", r.link(ev.Page), r.revision(ev.Revision), r.quote(ev.Comment)}
	case event.KindPageCreated:
		parts = []string{r.actor(ev.Actor), "created", r.link(ev.Page), r.revision(ev.Revision), r.quote(ev.Comment)}
	case event.KindPageDeleted:
		parts = []string{r.actor(ev.Actor), "deleted", r.link(ev.Page), r.quote(ev.Comment), r.revCount(ev.RevisionCount, "archived")}
	case event.KindPageUndeleted:
		what := "restored"
		if !ev.Recreated {
			what = "restored revisions of"
		}
		parts = []string{r.actor(ev.Actor), what, r.link(ev.Page), r.quote(ev.Comment)}
	case event.KindPageMoved:
		parts = []string{r.actor(ev.Actor), "moved", r.link(ev.Page), "to", r.link(ev.Target), r.quote(ev.Comment), r.revision(ev.Revision)}
	case event.KindPageProtected:
		parts = []string{r.actor(ev.Actor), "changed protection of", r.link(ev.Page), r.quote(ev.Comment), r.protections(ev.Protections)}
	case event.KindRevVisibilityChange:
		parts = []string{r.actor(ev.Actor), "changed visibility of", fmt.Sprintf("%d revision(s) on", ev.RevisionCount), r.link(ev.Page)}
	case event.KindUserRegistered:
		parts = []string{r.actor(ev.Actor), "registered"}
	case event.KindUserBlocked:
		parts = []string{r.actor(ev.Actor), "blocked", r.actor(ev.TargetActor), r.quote(ev.Comment), r.expiry(ev.Expiry)}
	case event.KindUserUnblocked:
		parts = []string{r.actor(ev.Actor), "unblocked", r.actor(ev.TargetActor)}
	case event.KindUserGroupsChanged:
		parts = []string{r.actor(ev.Actor), "changed group membership of", r.actor(ev.TargetActor), r.quote(ev.Comment),
			r.groups("+", ev.GroupsAdded), r.groups("-", ev.GroupsRemoved)}
	case event.KindUserRenamed:
		parts = []string{r.actor(ev.Actor), "renamed user", "*" + format.Sanitize(ev.OldName) + "*", "to", r.renameTarget(ev)}
	case event.KindFileUploaded:
		what := "uploaded"
		if ev.File != nil && ev.File.NewVersion {
			what = "uploaded new version of"
		}
		parts = []string{r.actor(ev.Actor), what, r.link(ev.Page), r.quote(ev.Comment), r.fileInfo(ev.File)}
	case event.KindFileDeleted:
		parts = []string{r.actor(ev.Actor), "deleted file", r.link(ev.Page), r.quote(ev.Comment)}
	case event.KindFileUndeleted:
		parts = []string{r.actor(ev.Actor), "restored file", r.link(ev.Page), r.quote(ev.Comment)}
	case event.KindPageImported:
		parts = []string{r.actor(ev.Actor), "imported", r.link(ev.Page),
			fmt.Sprintf("(%d revision(s), %d succeeded)", ev.RevisionCount, ev.SucceededCount)}
	case event.KindPagesMerged:
		parts = []string{r.actor(ev.Actor), "merged", r.link(ev.Page), "into", r.link(ev.Target)}
	case event.KindRevisionApproved:
		parts = []string{r.actor(ev.Actor), "approved", r.revisionLink(ev.Revision), "of", r.link(ev.Page), r.author(ev.TargetActor)}
	case event.KindRevisionUnapproved:
		parts = []string{r.actor(ev.Actor), "removed the approved revision of", r.link(ev.Page)}
	default:
		return "", false
	}

	return joinFragments(parts), true
}

// joinFragments drops empty fragments and single-spaces the rest.
func joinFragments(parts []string) string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func (r *Renderer) actor(a *event.Actor) string {
	if a == nil {
		return ""
	}
	return r.f.ActorLinks(*a)
}

func (r *Renderer) link(l *event.Link) string {
	if l == nil {
		return ""
	}
	return r.f.MarkdownLink(l.Text, l.URL)
}

func (r *Renderer) quote(text string) string {
	return r.f.QuoteFragment(text)
}

func (r *Renderer) revision(rev *event.Revision) string {
	if rev == nil {
		return ""
	}
	return r.f.RevisionText(*rev)
}

func (r *Renderer) revisionLink(rev *event.Revision) string {
	if rev == nil || rev.DiffURL == "" {
		return "a revision"
	}
	return r.f.MarkdownLink("revision", rev.DiffURL)
}

func (r *Renderer) author(a *event.Actor) string {
	if a == nil {
		return ""
	}
	return "(authored by " + r.f.ActorLinks(*a) + ")"
}

func (r *Renderer) renameTarget(ev event.Event) string {
	if ev.Target != nil {
		return r.f.MarkdownLink(ev.Target.Text, ev.Target.URL)
	}
	return format.Sanitize(ev.NewName)
}

func (r *Renderer) revCount(n int, what string) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("(%d revision(s) %s)", n, what)
}

func (r *Renderer) groups(sign string, names []string) string {
	if len(names) == 0 {
		return ""
	}
	return "`" + sign + " " + format.Sanitize(strings.Join(names, ", ")) + "`"
}

func (r *Renderer) protections(settings []string) string {
	if len(settings) == 0 {
		return ""
	}
	return "(" + format.Sanitize(strings.Join(settings, ", ")) + ")"
}

// expiry renders the block expiry: parseable timestamps are reformatted
// with the configured layout, anything else ("infinity", "indefinite")
// passes through verbatim.
func (r *Renderer) expiry(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return "(expires: `" + t.UTC().Format(r.blockTimeFormat) + "`)"
		}
	}
	return "(expires: `" + format.Sanitize(raw) + "`)"
}

func (r *Renderer) fileInfo(fi *event.FileInfo) string {
	if fi == nil {
		return ""
	}
	details := []string{format.FormatBytes(fi.Size, 2)}
	if fi.Width > 0 && fi.Height > 0 {
		details = append(details, fmt.Sprintf("%dx%d", fi.Width, fi.Height))
	}
	if fi.MimeType != "" {
		details = append(details, fi.MimeType)
	}
	return "(" + strings.Join(details, ", ") + ")"
}
