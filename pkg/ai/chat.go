package ai

import (
	"context"
	"fmt"
	"strings"
)

// DefaultPersona is the fixed system string prepended to conversational
// completions.
const DefaultPersona = "You are the Opvera learning assistant. Tone: friendly, helpful, concise. " +
	"Provide step-by-step explanations and code blocks for code requests. " +
	"If the user asks for quizzes, return valid JSON only."

// ChatWindowSize is how many recent messages form the conversation context.
const ChatWindowSize = 10

// ChatReply produces a free-text assistant reply from a rolling window of
// recent messages, oldest first. The reply is returned verbatim as the
// message body.
func ChatReply(ctx context.Context, completer Completer, turns []ChatTurn, persona string) (string, error) {
	if persona == "" {
		persona = DefaultPersona
	}

	if len(turns) > ChatWindowSize {
		turns = turns[len(turns)-ChatWindowSize:]
	}

	var history strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&history, "%s: %s\n", turn.Role, turn.Content)
	}

	prompt := fmt.Sprintf("%s\n\nConversation History:\n%s\nPlease provide a helpful response to the user's latest message.", persona, history.String())

	text, err := completer.Complete(ctx, prompt, CompleteOptions{
		Temperature:     0.7,
		MaxOutputTokens: 1024,
	})
	if err != nil {
		return "", fmt.Errorf("chat reply: %w", err)
	}
	return text, nil
}
