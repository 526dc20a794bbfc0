package ws

import (
	"encoding/json"

	"eventengine.ai/internal/metrics"
	"eventengine.ai/internal/protocol"
)

// The bridge is the engine's gameworld.World: every call fans out to all
// connected shards, and the shard holding the player applies it.

func (s *Server) Notify(playerID int32, text string) {
	s.push(protocol.TypeNotice, protocol.NoticeMsg{Type: protocol.TypeNotice, PlayerID: playerID, Text: text})
}

func (s *Server) Broadcast(text string) {
	s.push(protocol.TypeBroadcast, protocol.BroadcastMsg{Type: protocol.TypeBroadcast, Text: text})
}

func (s *Server) SetTitle(playerID int32, title string, color int) {
	s.push(protocol.TypeTitle, protocol.TitleMsg{Type: protocol.TypeTitle, PlayerID: playerID, Title: title, Color: color})
}

func (s *Server) RemoveFromInstance(instanceID int, playerID int32) {
	s.push(protocol.TypeInstanceRemove, protocol.InstanceRemoveMsg{Type: protocol.TypeInstanceRemove, InstanceID: instanceID, PlayerID: playerID})
}

// push never blocks; a shard whose queue is full misses the frame.
func (s *Server) push(typ string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		select {
		case sess.out <- b:
			metrics.BridgeFramesTotal.WithLabelValues(typ, "pushed").Inc()
		default:
			metrics.BridgeFramesTotal.WithLabelValues(typ, "dropped").Inc()
		}
	}
}
