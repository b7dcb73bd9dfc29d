package core

// WorldStore persists the simulation's agent, player and conversation
// records. Implementations must hand out snapshots that remain consistent
// for the duration of one orchestration call; the in-memory store does this
// by cloning on read. Mutation happens through Put, which replaces the
// stored record wholesale. The external tick engine guarantees serialized
// mutation per tick, so no finer-grained locking is required here.
type WorldStore interface {
	GetAgent(id string) (*Agent, error)
	PutAgent(agent *Agent) error
	AgentForPlayer(playerID string) (*Agent, error)

	GetPlayer(id string) (*Player, error)
	PutPlayer(player *Player) error

	GetConversation(id string) (*Conversation, error)
	PutConversation(conversation *Conversation) error
}
