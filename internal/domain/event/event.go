// Package event defines the wiki event model consumed by the relay core.
package event

import "strings"

// Kind identifies a wiki event variant. The set is closed: adapters map
// host-specific hook names onto exactly one of these.
type Kind string

const (
	KindPageSaved           Kind = "PageSaved"
	KindPageCreated         Kind = "PageCreated"
	KindPageDeleted         Kind = "PageDeleted"
	KindPageUndeleted       Kind = "PageUndeleted"
	KindPageMoved           Kind = "PageMoved"
	KindPageProtected       Kind = "PageProtected"
	KindRevVisibilityChange Kind = "RevisionVisibilityChanged"
	KindUserRegistered      Kind = "UserRegistered"
	KindUserBlocked         Kind = "UserBlocked"
	KindUserUnblocked       Kind = "UserUnblocked"
	KindUserGroupsChanged   Kind = "UserGroupsChanged"
	KindUserRenamed         Kind = "UserRenamed"
	KindFileUploaded        Kind = "FileUploaded"
	KindFileDeleted         Kind = "FileDeleted"
	KindFileUndeleted       Kind = "FileUndeleted"
	KindPageImported        Kind = "PageImported"
	KindPagesMerged         Kind = "PagesMerged"
	KindRevisionApproved    Kind = "RevisionApproved"
	KindRevisionUnapproved  Kind = "RevisionUnapproved"
)

// kinds is the lookup table for ParseKind, keyed by lowercase name.
var kinds = func() map[string]Kind {
	all := []Kind{
		KindPageSaved, KindPageCreated, KindPageDeleted, KindPageUndeleted,
		KindPageMoved, KindPageProtected, KindRevVisibilityChange,
		KindUserRegistered, KindUserBlocked, KindUserUnblocked,
		KindUserGroupsChanged, KindUserRenamed, KindFileUploaded,
		KindFileDeleted, KindFileUndeleted, KindPageImported,
		KindPagesMerged, KindRevisionApproved, KindRevisionUnapproved,
	}
	m := make(map[string]Kind, len(all))
	for _, k := range all {
		m[strings.ToLower(string(k))] = k
	}
	return m
}()

// ParseKind resolves a kind name case-insensitively.
// The second return is false for names outside the closed set.
func ParseKind(s string) (Kind, bool) {
	k, ok := kinds[strings.ToLower(s)]
	return k, ok
}

func (k Kind) String() string { return string(k) }

// Actor is the wiki user (or anonymous IP) who performed the action.
type Actor struct {
	Name        string `json:"name"`
	ProfileURL  string `json:"profile_url,omitempty"`
	TalkURL     string `json:"talk_url,omitempty"`
	ContribsURL string `json:"contribs_url,omitempty"`
	Anonymous   bool   `json:"anonymous,omitempty"`
	Bot         bool   `json:"bot,omitempty"`
}

// Revision describes one saved revision of a page.
// ParentSize is nil when the revision has no resolvable parent.
type Revision struct {
	DiffURL    string `json:"diff_url"`
	Minor      bool   `json:"minor,omitempty"`
	Size       int64  `json:"size"`
	ParentSize *int64 `json:"parent_size,omitempty"`
}

// Link is a display name paired with a URL.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// FileInfo carries upload metadata for file events.
type FileInfo struct {
	Size       int64  `json:"size"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	NewVersion bool   `json:"new_version,omitempty"`
}

// Event is one wiki lifecycle event. It is constructed once by an adapter,
// consumed once by the relay core, and discarded. Only the fields relevant
// to the Kind are populated.
type Event struct {
	Kind      Kind   `json:"kind"`
	Namespace *int   `json:"namespace,omitempty"`
	Actor     *Actor `json:"actor,omitempty"`

	// Page is the primary affected subject; Target is the secondary one
	// (move destination, merge destination).
	Page   *Link `json:"page,omitempty"`
	Target *Link `json:"target,omitempty"`

	// TargetActor is the user acted upon (block, unblock, groups changed,
	// author of an approved revision).
	TargetActor *Actor `json:"target_actor,omitempty"`

	// Free text supplied by the acting user: edit summary, deletion or
	// block reason, upload comment. Sanitized by the formatter, never here.
	Comment string `json:"comment,omitempty"`

	Revision *Revision `json:"revision,omitempty"`
	File     *FileInfo `json:"file,omitempty"`

	// Expiry is the raw block expiry string ("infinity" stays verbatim).
	Expiry string `json:"expiry,omitempty"`

	GroupsAdded   []string `json:"groups_added,omitempty"`
	GroupsRemoved []string `json:"groups_removed,omitempty"`

	// Protections holds the protection settings applied (PageProtected).
	Protections []string `json:"protections,omitempty"`

	// RevisionCount is the archived/restored/affected revision count for
	// delete, undelete and visibility events, and the imported revision
	// count for PageImported.
	RevisionCount int `json:"revision_count,omitempty"`

	// SucceededCount is the successfully imported revision count.
	SucceededCount int `json:"succeeded_count,omitempty"`

	// Recreated marks an undelete that recreated the page itself rather
	// than restoring revisions into an existing one.
	Recreated bool `json:"recreated,omitempty"`

	// NullEdit marks a save that produced no content change.
	NullEdit bool `json:"null_edit,omitempty"`

	// OldName/NewName carry the rename pair for UserRenamed.
	OldName string `json:"old_name,omitempty"`
	NewName string `json:"new_name,omitempty"`
}
