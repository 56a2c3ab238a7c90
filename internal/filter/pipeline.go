package filter

import (
	"log/slog"

	"github.com/playcat/catconsult/internal/models"
)

// FilterMessage runs the full pipeline on a raw inbound message:
// sanitize, then spam heuristics, then the topic/security classifier.
// The first rejection wins; an allow verdict carries the sanitized text.
//
// Option selections skip the spam check (option payloads are structured,
// not free text) but any accompanying text still passes the topic and
// security rules, so malicious text cannot ride along with an option click.
func FilterMessage(raw string, isOptionSelected bool) models.FilterVerdict {
	sanitized := Sanitize(raw)

	if !isOptionSelected {
		if isSpam, reason := CheckSpam(sanitized); isSpam {
			slog.Debug("filter.FilterMessage: spam rejected", "reason", reason, "length", len(sanitized))
			return models.FilterVerdict{
				Allowed:          false,
				SanitizedMessage: sanitized,
				Reason:           reason,
				IsSpam:           true,
			}
		}
	}

	allowed, reason := Classify(sanitized, isOptionSelected)
	if !allowed {
		slog.Debug("filter.FilterMessage: topic gate rejected", "reason", reason, "optionSelected", isOptionSelected)
	}
	return models.FilterVerdict{
		Allowed:          allowed,
		SanitizedMessage: sanitized,
		Reason:           reason,
		IsSpam:           false,
	}
}
