package server

import (
	"context"

	"whosetune/internal/db"
)

type MemberInfo struct {
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	IsOwner     bool   `json:"is_owner"`
}

type HandleInfo struct {
	Handle          string `json:"handle"`
	ContributorName string `json:"contributor_name,omitempty"`
	Claimed         bool   `json:"claimed"`
}

type StandingEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type Standing struct {
	OwnerID uint            `json:"owner_id"`
	Round   int             `json:"round"`
	Status  string          `json:"status"`
	Entries []StandingEntry `json:"standing"`
}

// RoomSnapshot is the room's public state: enough for a client that
// connected late (or reconnected) to rebuild its view with one query.
type RoomSnapshot struct {
	RoomID       uint         `json:"room_id"`
	OwnerID      uint         `json:"owner_id"`
	Status       string       `json:"status"`
	CurrentRound int          `json:"current_round"`
	TotalRounds  int          `json:"total_rounds"`
	Handles      []HandleInfo `json:"handles"`
	Members      []MemberInfo `json:"members"`
}

func (s *Server) buildSnapshot(ctx context.Context, room *db.Room) (*RoomSnapshot, error) {
	tx := s.db.WithContext(ctx)
	rounds, err := roomRoundCountTx(tx, room)
	if err != nil {
		return nil, err
	}
	var memberships []db.Membership
	if err := tx.Where("room_id = ?", room.ID).Order("id").Find(&memberships).Error; err != nil {
		return nil, err
	}
	snapshot := &RoomSnapshot{
		RoomID:       room.ID,
		OwnerID:      room.OwnerID,
		Status:       room.Status,
		CurrentRound: room.CurrentRound,
		TotalRounds:  rounds,
		Handles:      make([]HandleInfo, 0, len(memberships)),
		Members:      make([]MemberInfo, 0, len(memberships)),
	}
	for _, m := range memberships {
		snapshot.Handles = append(snapshot.Handles, HandleInfo{
			Handle:          m.Handle,
			ContributorName: m.ContributorName,
			Claimed:         m.UserID != nil,
		})
		if m.UserID != nil {
			snapshot.Members = append(snapshot.Members, MemberInfo{
				UserID:      *m.UserID,
				DisplayName: displayLabel(m),
				IsOwner:     *m.UserID == room.OwnerID,
			})
		}
	}
	return snapshot, nil
}
