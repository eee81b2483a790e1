package store

import "time"

// Profile is a trainer's persistent progress: identity plus owned pokemon.
type Profile struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`
	// Pokemon holds the ids of the pokemon this trainer owns.
	Pokemon []string `json:"pokemon"`
}
