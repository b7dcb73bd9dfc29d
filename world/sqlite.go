package world

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/EmbeddedLLM/ai-town/core"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements core.WorldStore on a SQLite database, persisting
// the world across restarts. Reads build fresh records per call, giving
// callers the same snapshot isolation the in-memory store provides by
// cloning.
type SQLiteStore struct {
	db *sql.DB
}

var _ core.WorldStore = (*SQLiteStore)(nil)

// NewSQLite creates a SQLite-backed world store at dbPath, creating the
// schema when absent.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency between the tick loop and readers.
	// The _pragma form is what this driver parses; it applies the pragmas
	// on every new pooled connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		identity TEXT NOT NULL DEFAULT '',
		human INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		player_id TEXT NOT NULL,
		op_id TEXT,
		op_kind INTEGER,
		op_started INTEGER,
		last_conversation TEXT NOT NULL DEFAULT '',
		last_invite_attempt INTEGER NOT NULL DEFAULT 0,
		to_remember TEXT NOT NULL DEFAULT '',
		knowledge_store_id TEXT NOT NULL DEFAULT '',
		chat_template_id TEXT NOT NULL DEFAULT ''
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_agents_player ON agents(player_id);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL,
		player_a TEXT NOT NULL,
		player_b TEXT NOT NULL,
		created INTEGER NOT NULL,
		num_messages INTEGER NOT NULL DEFAULT 0,
		state INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS usage (
		agent_id TEXT NOT NULL,
		conversation_key TEXT NOT NULL,
		token_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (agent_id, conversation_key)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// GetAgent implements core.WorldStore.
func (s *SQLiteStore) GetAgent(id string) (*core.Agent, error) {
	return s.agentByQuery(`SELECT id, player_id, op_id, op_kind, op_started,
		last_conversation, last_invite_attempt, to_remember,
		knowledge_store_id, chat_template_id FROM agents WHERE id = ?`, id)
}

// AgentForPlayer implements core.WorldStore.
func (s *SQLiteStore) AgentForPlayer(playerID string) (*core.Agent, error) {
	return s.agentByQuery(`SELECT id, player_id, op_id, op_kind, op_started,
		last_conversation, last_invite_attempt, to_remember,
		knowledge_store_id, chat_template_id FROM agents WHERE player_id = ?`, playerID)
}

func (s *SQLiteStore) agentByQuery(query, arg string) (*core.Agent, error) {
	row := s.db.QueryRow(query, arg)

	var agent core.Agent
	var opID sql.NullString
	var opKind, opStarted sql.NullInt64
	var lastInvite int64

	err := row.Scan(
		&agent.ID, &agent.PlayerID, &opID, &opKind, &opStarted,
		&agent.LastConversation, &lastInvite, &agent.ToRemember,
		&agent.KnowledgeStoreID, &agent.ChatTemplateID,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent %q: %w", arg, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent row: %w", err)
	}

	if opID.Valid {
		agent.InProgress = &core.Operation{
			ID:      opID.String,
			Kind:    core.OperationKind(opKind.Int64),
			Started: time.Unix(opStarted.Int64, 0).UTC(),
		}
	}
	if lastInvite != 0 {
		agent.LastInviteAttempt = time.Unix(lastInvite, 0).UTC()
	}

	rows, err := s.db.Query(`SELECT conversation_key, token_count FROM usage WHERE agent_id = ?`, agent.ID)
	if err != nil {
		return nil, fmt.Errorf("query usage rows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u core.ConversationUsage
		if err := rows.Scan(&u.ConversationKey, &u.TokenCount); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		agent.Usage = append(agent.Usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage rows: %w", err)
	}
	return &agent, nil
}

// PutAgent implements core.WorldStore, replacing the stored record and its
// usage rows in one transaction.
func (s *SQLiteStore) PutAgent(agent *core.Agent) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin put agent: %w", err)
	}
	defer tx.Rollback()

	var opID sql.NullString
	var opKind, opStarted sql.NullInt64
	if op := agent.InProgress; op != nil {
		opID = sql.NullString{String: op.ID, Valid: true}
		opKind = sql.NullInt64{Int64: int64(op.Kind), Valid: true}
		opStarted = sql.NullInt64{Int64: op.Started.Unix(), Valid: true}
	}
	var lastInvite int64
	if !agent.LastInviteAttempt.IsZero() {
		lastInvite = agent.LastInviteAttempt.Unix()
	}

	_, err = tx.Exec(`
		INSERT INTO agents (id, player_id, op_id, op_kind, op_started,
			last_conversation, last_invite_attempt, to_remember,
			knowledge_store_id, chat_template_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			player_id = excluded.player_id,
			op_id = excluded.op_id,
			op_kind = excluded.op_kind,
			op_started = excluded.op_started,
			last_conversation = excluded.last_conversation,
			last_invite_attempt = excluded.last_invite_attempt,
			to_remember = excluded.to_remember,
			knowledge_store_id = excluded.knowledge_store_id,
			chat_template_id = excluded.chat_template_id`,
		agent.ID, agent.PlayerID, opID, opKind, opStarted,
		agent.LastConversation, lastInvite, agent.ToRemember,
		agent.KnowledgeStoreID, agent.ChatTemplateID,
	)
	if err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM usage WHERE agent_id = ?`, agent.ID); err != nil {
		return fmt.Errorf("clear usage rows: %w", err)
	}
	for _, u := range agent.Usage {
		_, err := tx.Exec(`INSERT INTO usage (agent_id, conversation_key, token_count) VALUES (?, ?, ?)`,
			agent.ID, u.ConversationKey, u.TokenCount)
		if err != nil {
			return fmt.Errorf("insert usage row: %w", err)
		}
	}
	return tx.Commit()
}

// GetPlayer implements core.WorldStore.
func (s *SQLiteStore) GetPlayer(id string) (*core.Player, error) {
	row := s.db.QueryRow(`SELECT id, name, identity, human FROM players WHERE id = ?`, id)
	var player core.Player
	var human int
	err := row.Scan(&player.ID, &player.Name, &player.Identity, &human)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("player %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan player row: %w", err)
	}
	player.Human = human != 0
	return &player, nil
}

// PutPlayer implements core.WorldStore.
func (s *SQLiteStore) PutPlayer(player *core.Player) error {
	human := 0
	if player.Human {
		human = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO players (id, name, identity, human) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			identity = excluded.identity,
			human = excluded.human`,
		player.ID, player.Name, player.Identity, human,
	)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

// GetConversation implements core.WorldStore.
func (s *SQLiteStore) GetConversation(id string) (*core.Conversation, error) {
	row := s.db.QueryRow(`SELECT id, key, player_a, player_b, created, num_messages, state
		FROM conversations WHERE id = ?`, id)
	var conv core.Conversation
	var created int64
	var state int
	err := row.Scan(&conv.ID, &conv.Key, &conv.Participants[0], &conv.Participants[1],
		&created, &conv.NumMessages, &state)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}
	conv.Created = time.Unix(created, 0).UTC()
	conv.State = core.ConversationState(state)
	return &conv, nil
}

// PutConversation implements core.WorldStore.
func (s *SQLiteStore) PutConversation(conv *core.Conversation) error {
	_, err := s.db.Exec(`
		INSERT INTO conversations (id, key, player_a, player_b, created, num_messages, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			key = excluded.key,
			player_a = excluded.player_a,
			player_b = excluded.player_b,
			created = excluded.created,
			num_messages = excluded.num_messages,
			state = excluded.state`,
		conv.ID, conv.Key, conv.Participants[0], conv.Participants[1],
		conv.Created.Unix(), conv.NumMessages, int(conv.State),
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}
