package dispatch

import (
	"log/slog"
	"time"

	"github.com/wikirelay/wikirelay/internal/config"
)

// siteNameLimit is the chat platform's username length cap; a longer
// configured site name is clamped rather than rejected.
const siteNameLimit = 32

// decorator prepends one readability prefix to a message. Decorators run
// in configured list order and each prepends, so the final message reads
// them right-to-left relative to the list.
type decorator func(hookKind, msg string) string

// buildDecorators compiles the configured decoration list. Disabled
// decorators and unknown names are skipped; only the unknown ones warrant
// a warning.
func buildDecorators(cfg config.Dispatch, now func() time.Time, log *slog.Logger) []decorator {
	var out []decorator
	for _, name := range cfg.Decorations {
		switch name {
		case "emoji":
			if !cfg.UseEmojis {
				continue
			}
			out = append(out, emojiDecorator(cfg.Emojis, log))
		case "timestamp":
			if !cfg.PrependTimestamp {
				continue
			}
			out = append(out, timestampDecorator(cfg.TimestampFormat, now))
		case "sitename":
			if !cfg.PrependSiteName || cfg.SiteName == "" {
				continue
			}
			out = append(out, siteNameDecorator(cfg.SiteName))
		default:
			log.Warn("unknown decoration, skipping", "name", name)
		}
	}
	return out
}

// emojiDecorator prepends the emoji mapped to the hook kind. A missing
// mapping skips the prefix rather than failing the dispatch.
func emojiDecorator(emojis map[string]string, log *slog.Logger) decorator {
	return func(hookKind, msg string) string {
		emoji, ok := emojis[hookKind]
		if !ok || emoji == "" {
			log.Debug("no emoji mapped for hook", "hook", hookKind)
			return msg
		}
		return emoji + " " + msg
	}
}

// timestampDecorator prepends the current UTC time in the given layout.
func timestampDecorator(layout string, now func() time.Time) decorator {
	return func(_, msg string) string {
		return now().UTC().Format(layout) + " " + msg
	}
}

// siteNameDecorator prepends the site name, clamped to the platform's
// username limit.
func siteNameDecorator(name string) decorator {
	if len(name) > siteNameLimit {
		name = name[:siteNameLimit]
	}
	return func(_, msg string) string {
		return name + " " + msg
	}
}
