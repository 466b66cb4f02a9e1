// Event commentary: turns arena happenings into one line of pirate brainrot via Haiku.
package llm

import (
	"context"
	"fmt"
)

// Narrator produces a line of commentary for an event description.
type Narrator interface {
	Commentary(ctx context.Context, event string) (string, error)
}

// Phrases are the canned popup lines. They also stand in for commentary
// when no narrator is configured.
var Phrases = []string{
	"67",
	"SKIBIDI SKRILLA!",
	"NO CAP PIRATE",
	"GYATT THAT GOLD",
	"PIRATE RIZZ +1000",
	"OHIO SHIPWRECK",
	"Mewing in the Brig",
	"L BOZO",
	"W GOLD STEAL",
	"FANUM TAX!",
	"Sussus Amongus Pirate",
}

const (
	// FallbackEmpty replaces an empty narrator reply.
	FallbackEmpty = "PIRATE RIZZ MOMENT!"
	// FallbackError replaces a failed narrator call.
	FallbackError = "SKIBIDI PIRATE MOMENT!"
	// Welcome is the commentary shown before anything has happened.
	Welcome = "WELCOME TO THE ARENA, SKIBIDI PIRATE!"
)

const commentarySystem = `You are the announcer of a pirate gold-stealing arena. Write one short, funny sentence of "brainrot" style commentary about the event you are given. Use slang like skibidi, rizz, gyatt, fanum tax, ohio, sigma, but keep it piraty. No preamble, no quotes.`

// HaikuNarrator narrates through the Haiku client.
type HaikuNarrator struct {
	Client    *Client
	MaxTokens int
}

// Commentary implements Narrator.
func (n HaikuNarrator) Commentary(ctx context.Context, event string) (string, error) {
	if !n.Client.Enabled() {
		return "", ErrDisabled
	}
	maxTokens := n.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 50
	}
	prompt := fmt.Sprintf("Pirate game event: %q", event)
	return n.Client.Complete(ctx, commentarySystem, prompt, maxTokens)
}
