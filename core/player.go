package core

// Player is the world-visible identity a participant speaks through. Agents
// reference a player for display name and descriptive identity; human
// participants are players without a backing agent.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Identity string `json:"identity,omitempty"`
	Human    bool   `json:"human,omitempty"`
}

// Clone returns a copy of the player.
func (p *Player) Clone() *Player {
	clone := *p
	return &clone
}
