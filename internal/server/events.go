package server

import (
	"encoding/json"
	"log"

	"whosetune/internal/db"

	"gorm.io/datatypes"
)

type EventPayload struct {
	RoomID      uint   `json:"room_id,omitempty"`
	PlaylistID  uint   `json:"playlist_id,omitempty"`
	UserID      uint   `json:"user_id,omitempty"`
	Handle      string `json:"handle,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Round       int    `json:"round,omitempty"`
}

// recordEvent appends to the room's audit trail. Failures are logged and
// dropped; the audit log never fails a state change.
func (s *Server) recordEvent(roomID uint, eventType string, payload EventPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("event encode failed room_id=%d type=%s error=%v", roomID, eventType, err)
		return
	}
	event := db.Event{
		RoomID:  roomID,
		Type:    eventType,
		Payload: datatypes.JSON(data),
	}
	if err := s.db.Create(&event).Error; err != nil {
		log.Printf("event write failed room_id=%d type=%s error=%v", roomID, eventType, err)
	}
}
