package provider

import (
	"strings"

	"github.com/pario-ai/narrator/pkg/models"
)

const systemPrompt = `You are the narrator of an interactive text adventure.
Describe what happens in response to the player's action in two to four
vivid sentences. Stay consistent with the game state you are given. Never
invent items the player does not carry. Do not offer choices or ask
questions.`

// Messages renders req as a system prompt and one user turn carrying the
// optimized game state and the player's input.
func Messages(req Request) []models.ChatMessage {
	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: systemPrompt},
		{Role: models.RoleUser, Content: userTurn(req)},
	}
}

func userTurn(req Request) string {
	var b strings.Builder
	b.WriteString("Game state:\n")
	b.WriteString(req.Context.Payload)
	b.WriteString("\n\nPlayer: ")
	b.WriteString(strings.TrimSpace(req.Input))
	return b.String()
}
