// Package content generates the prose of the game: narrative continuations,
// in-character dialogue, and conversation summaries.
//
// Every generator follows the same degraded-mode contract: it always returns
// usable text, and a non-nil error reports that the text is a canned
// fallback because the provider failed. A turn never dies because a model
// was unreachable; the story just gets briefly duller.
package content

import (
	"fmt"
	"strings"

	"github.com/emberwick/everloom/internal/character"
)

// speaker labels used in dialogue history entries.
const (
	SpeakerPlayer     = "player"
	SpeakerGamemaster = "gamemaster"
)

// formatHistory renders a dialogue history as readable transcript lines.
// nameOf resolves character ids to display names; player and gamemaster
// entries get fixed labels.
func formatHistory(history []character.Utterance, nameOf func(string) string) string {
	lines := make([]string, 0, len(history))
	for _, u := range history {
		label := u.Speaker
		switch u.Speaker {
		case SpeakerPlayer:
			label = "Player"
		case SpeakerGamemaster:
			label = "System"
		default:
			if nameOf != nil {
				label = nameOf(u.Speaker)
			}
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, u.Text))
	}
	return strings.Join(lines, "\n")
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
