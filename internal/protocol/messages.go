package protocol

import "eventengine.ai/internal/gameworld"

// HELLO (shard -> engine)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ShardID         string `json:"shard_id"`
	Token           string `json:"token,omitempty"`
}

// WELCOME (engine -> shard)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	Candidates      []string `json:"candidates"`
	EventsDigest    string   `json:"events_digest,omitempty"`
	Phase           string   `json:"phase"`
}

// SIGNAL (shard -> engine): one gameplay callback. Target, Skill and Item
// are present when the signal needs them.
type SignalMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	ReqID           string           `json:"req_id"`
	Signal          string           `json:"signal"`
	Actor           gameworld.Actor  `json:"actor"`
	Target          *gameworld.Actor `json:"target,omitempty"`
	Skill           *gameworld.Skill `json:"skill,omitempty"`
	Item            *gameworld.Item  `json:"item,omitempty"`
}

// VERDICT (engine -> shard): Suppress asks the shard to cancel its default
// handling of the signal.
type VerdictMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Suppress        bool   `json:"suppress"`
}

// REGISTER / UNREGISTER / VOTE (shard -> engine), on behalf of a player.
type CommandMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ReqID           string          `json:"req_id"`
	Player          gameworld.Actor `json:"player"`
	Kind            string          `json:"kind,omitempty"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}

// STATE (engine -> shard), the reply to STATE_REQ.
type StateMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	ReqID           string         `json:"req_id,omitempty"`
	Phase           string         `json:"phase"`
	Countdown       int            `json:"countdown"`
	NextKind        string         `json:"next_kind,omitempty"`
	ActiveKind      string         `json:"active_kind,omitempty"`
	RoundID         string         `json:"round_id,omitempty"`
	Registered      int            `json:"registered"`
	Votes           map[string]int `json:"votes"`
}

type NoticeMsg struct {
	Type     string `json:"type"`
	PlayerID int32  `json:"player_id"`
	Text     string `json:"text"`
}

type BroadcastMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type TitleMsg struct {
	Type     string `json:"type"`
	PlayerID int32  `json:"player_id"`
	Title    string `json:"title"`
	Color    int    `json:"color"`
}

type InstanceRemoveMsg struct {
	Type       string `json:"type"`
	InstanceID int    `json:"instance_id"`
	PlayerID   int32  `json:"player_id"`
}
