// Package gameworld holds the value types the host world attaches to its
// gameplay signals, plus the narrow World interface the engine calls back into.
package gameworld

type ActorKind string

const (
	KindPlayer  ActorKind = "PLAYER"
	KindSummon  ActorKind = "SUMMON"
	KindNpc     ActorKind = "NPC"
	KindMonster ActorKind = "MONSTER"
)

// Actor is any creature that can appear in a world signal.
type Actor struct {
	ID         int32     `json:"id"`
	Kind       ActorKind `json:"kind"`
	OwnerID    int32     `json:"owner_id,omitempty"` // summons only
	Name       string    `json:"name,omitempty"`
	Title      string    `json:"title,omitempty"`
	TitleColor int       `json:"title_color,omitempty"`
	Lang       string    `json:"lang,omitempty"`
	InstanceID int       `json:"instance_id,omitempty"`
}

// IsPlayable reports whether the actor is controlled by a player, directly or
// through a summon.
func (a Actor) IsPlayable() bool { return a.Kind == KindPlayer || a.Kind == KindSummon }

func (a Actor) IsPlayer() bool { return a.Kind == KindPlayer }

// ControllerID is the player object id behind a playable actor.
func (a Actor) ControllerID() int32 {
	if a.Kind == KindSummon && a.OwnerID != 0 {
		return a.OwnerID
	}
	return a.ID
}

type Item struct {
	ObjectID int32  `json:"object_id"`
	ItemID   int    `json:"item_id"`
	Name     string `json:"name,omitempty"`
	Slot     string `json:"slot,omitempty"`
}

type Skill struct {
	ID    int    `json:"id"`
	Level int    `json:"level"`
	Name  string `json:"name,omitempty"`
}

// Participant is a player enrolled in a running event together with the
// appearance it had before the event changed it.
type Participant struct {
	Player             Actor
	OriginalTitle      string
	OriginalTitleColor int
	InstanceID         int
	Team               string
	Kills              int
	Deaths             int
}

// World is the slice of the host game server the engine talks back to.
type World interface {
	// Notify sends a system notice to one player.
	Notify(playerID int32, text string)
	// Broadcast sends a notice to every online player.
	Broadcast(text string)
	SetTitle(playerID int32, title string, color int)
	RemoveFromInstance(instanceID int, playerID int32)
}

// NopWorld discards every call.
type NopWorld struct{}

func (NopWorld) Notify(int32, string)          {}
func (NopWorld) Broadcast(string)              {}
func (NopWorld) SetTitle(int32, string, int)   {}
func (NopWorld) RemoveFromInstance(int, int32) {}
