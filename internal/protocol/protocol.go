package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello    = "HELLO"
	TypeWelcome  = "WELCOME"
	TypeSignal   = "SIGNAL"
	TypeVerdict  = "VERDICT"
	TypeRegister = "REGISTER"
	TypeUnreg    = "UNREGISTER"
	TypeVote     = "VOTE"
	TypeAck      = "ACK"
	TypeStateReq = "STATE_REQ"
	TypeState    = "STATE"

	// Pushed by the engine to every shard.
	TypeNotice         = "NOTICE"
	TypeBroadcast      = "BROADCAST"
	TypeTitle          = "TITLE"
	TypeInstanceRemove = "INSTANCE_REMOVE"
)

// World signals carried by SIGNAL.
const (
	SignalAttack      = "ATTACK"
	SignalSkillUse    = "SKILL_USE"
	SignalKill        = "KILL"
	SignalNpcInteract = "NPC_INTERACT"
	SignalEquipItem   = "EQUIP_ITEM"
	SignalLogin       = "LOGIN"
	SignalLogout      = "LOGOUT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ReqID           string `json:"req_id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
