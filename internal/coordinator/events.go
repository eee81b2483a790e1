package coordinator

// Event types published over the stream.
const (
	EventBattleStarted  = "battle.started"
	EventRoundCompleted = "battle.round"
	EventBattleEnded    = "battle.ended"
)

// Event is one battle lifecycle notification for stream subscribers.
type Event struct {
	Type     string   `json:"type"`
	BattleID int      `json:"battle_id"`
	Round    int      `json:"round,omitempty"`
	Lines    []string `json:"lines,omitempty"`
	Detail   string   `json:"detail,omitempty"`
}
