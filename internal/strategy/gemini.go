package strategy

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dyc3/discord-pokemon-battles/pkg/models"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiModel = "gemini-2.5-flash"

// NewGemini returns a strategy backed by the Gemini API: the model is shown
// the move set and opponent and asked to pick a move index. Registered at
// startup only when an API key is configured. A model failure fails the turn
// (and therefore the battle) like any other agent failure.
func NewGemini(ctx context.Context, apiKey string) (Func, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	model := client.GenerativeModel(geminiModel)

	return func(ctx context.Context, bc *models.BattleContext) (models.Turn, error) {
		if len(bc.Opponents) == 0 {
			return nil, fmt.Errorf("battle context has no opponents")
		}
		prompt := buildGeminiPrompt(bc)
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, fmt.Errorf("gemini strategy: %w", err)
		}
		if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			return nil, fmt.Errorf("gemini strategy: empty response")
		}
		text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
		if !ok {
			return nil, fmt.Errorf("gemini strategy: unexpected response part type")
		}
		move, err := parseMoveIndex(string(text), len(bc.Pokemon.Moves))
		if err != nil {
			return nil, fmt.Errorf("gemini strategy: %w", err)
		}
		return bc.Fight(bc.Opponents[0], move), nil
	}, nil
}

func buildGeminiPrompt(bc *models.BattleContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are choosing a move in a pokemon battle.\n")
	fmt.Fprintf(&b, "Your pokemon: %s (HP %d, level %d)\n", bc.Pokemon.Name, bc.Pokemon.CurrentHP, bc.Pokemon.Level)
	b.WriteString("Moves:\n")
	for i, m := range bc.Pokemon.Moves {
		fmt.Fprintf(&b, "%d: %s (power %d, accuracy %d, pp %d/%d)\n", i, m.Name, m.Power, m.Accuracy, m.CurrentPP, m.MaxPP)
	}
	if op := bc.Opponents[0]; op.Pokemon != nil {
		fmt.Fprintf(&b, "Opponent: %s (HP %d)\n", op.Pokemon.Name, op.Pokemon.CurrentHP)
	}
	b.WriteString("Reply with only the number of the move to use. Do not pick a move with 0 pp.\n")
	return b.String()
}

func parseMoveIndex(text string, moveCount int) (int, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return 0, fmt.Errorf("no move index in response %q", text)
	}
	move, err := strconv.Atoi(strings.Trim(fields[0], "."))
	if err != nil {
		return 0, fmt.Errorf("bad move index in response %q", text)
	}
	if move < 0 || move >= moveCount {
		return 0, fmt.Errorf("move index %d out of range", move)
	}
	return move, nil
}
