package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"whosetune/internal/db"
	"whosetune/internal/spotify"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateRoom resolves the playlist reference through the catalog importer,
// persists the playlist idempotently, and opens a new room in setting_up
// with one unclaimed membership per distinct contributor handle.
func (s *Server) CreateRoom(ctx context.Context, ownerID uint, playlistRef string) (*db.Room, error) {
	if strings.TrimSpace(playlistRef) == "" {
		return nil, ErrInvalidInput
	}
	var owner db.User
	if err := s.db.WithContext(ctx).First(&owner, ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	resolved, err := s.importer.ResolvePlaylist(ctx, playlistRef)
	if err != nil {
		if errors.Is(err, spotify.ErrInvalidReference) {
			return nil, ErrInvalidPlaylist
		}
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	playlist, err := s.persistPlaylist(ctx, resolved)
	if err != nil {
		return nil, err
	}

	var tracks []db.Track
	if err := s.db.WithContext(ctx).
		Where("playlist_id = ?", playlist.ID).
		Order("number").
		Find(&tracks).Error; err != nil {
		return nil, err
	}

	room := db.Room{
		OwnerID:    ownerID,
		PlaylistID: &playlist.ID,
		Status:     db.RoomSettingUp,
	}
	handles := contributorHandles(tracks, resolved.ContributorNames)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		for _, handle := range handles {
			membership := db.Membership{
				RoomID:          room.ID,
				Handle:          handle,
				ContributorName: resolved.ContributorNames[handle],
			}
			if err := tx.Create(&membership).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordEvent(room.ID, "room_created", EventPayload{
		RoomID:     room.ID,
		PlaylistID: playlist.ID,
	})
	log.Printf("room created room_id=%d owner_id=%d playlist=%s tracks=%d", room.ID, ownerID, playlist.SpotifyID, len(tracks))
	return &room, nil
}

// persistPlaylist is an idempotent bulk append keyed by the external
// playlist id; re-importing a known playlist never duplicates tracks.
func (s *Server) persistPlaylist(ctx context.Context, resolved *spotify.Playlist) (*db.Playlist, error) {
	record := db.Playlist{
		SpotifyID: resolved.SpotifyID,
		Name:      resolved.Name,
		OwnerName: resolved.Owner,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing db.Playlist
		err := tx.Where("spotify_id = ?", resolved.SpotifyID).First(&existing).Error
		if err == nil {
			record = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
			return err
		}
		if record.ID == 0 {
			// Lost a concurrent import race; the other writer owns the rows.
			return tx.Where("spotify_id = ?", resolved.SpotifyID).First(&record).Error
		}
		for i, track := range resolved.Tracks {
			row := db.Track{
				PlaylistID: record.ID,
				Number:     i + 1,
				Title:      track.Title,
				Artist:     track.Artist,
				DurationMS: track.DurationMS,
				AddedBy:    track.AddedBy,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// JoinRoom admits a user into a room and returns its public snapshot.
// Joining a room that is already playing is allowed unless configured
// otherwise; finished rooms reject all joins.
func (s *Server) JoinRoom(ctx context.Context, roomID, userID uint) (*RoomSnapshot, error) {
	var user db.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == db.RoomFinished {
		return nil, ErrRoomFinished
	}
	if room.Status == db.RoomPlaying && !s.cfg.AllowLateJoin {
		return nil, ErrRoomAlreadyPlaying
	}
	return s.buildSnapshot(ctx, room)
}

// ClaimHandle binds a contributor handle to a user under the room lock.
// A user holds at most one handle per room: claiming releases any handle
// the same user held before, in the same transaction.
func (s *Server) ClaimHandle(ctx context.Context, roomID, userID uint, displayName, handle string) error {
	name, err := validateDisplayName(displayName)
	if err != nil {
		return ErrInvalidInput
	}
	wanted, err := validateHandle(handle)
	if err != nil {
		return ErrInvalidInput
	}

	unlock := s.locks.Lock(roomID)
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := findRoomTx(tx, roomID)
		if err != nil {
			return err
		}
		if room.Status == db.RoomFinished {
			return ErrRoomFinished
		}
		var membership db.Membership
		if err := tx.Where("room_id = ? AND handle = ?", roomID, wanted).First(&membership).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrHandleNotFound
			}
			return err
		}
		if membership.UserID != nil && *membership.UserID != userID {
			return ErrHandleAlreadyClaimed
		}
		if err := tx.Model(&db.Membership{}).
			Where("room_id = ? AND user_id = ?", roomID, userID).
			Updates(map[string]any{"user_id": nil, "display_name": ""}).Error; err != nil {
			return err
		}
		return tx.Model(&db.Membership{}).
			Where("id = ?", membership.ID).
			Updates(map[string]any{"user_id": userID, "display_name": name}).Error
	})
	if err != nil {
		return err
	}

	s.recordEvent(roomID, "handle_claimed", EventPayload{
		RoomID:      roomID,
		UserID:      userID,
		Handle:      wanted,
		DisplayName: name,
	})
	log.Printf("handle claimed room_id=%d user_id=%d handle=%s", roomID, userID, wanted)
	s.broadcastMembers(ctx, roomID)
	return nil
}

// ListMembers returns the claimed roster in membership creation order.
func (s *Server) ListMembers(ctx context.Context, roomID uint) ([]MemberInfo, error) {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	var memberships []db.Membership
	if err := s.db.WithContext(ctx).
		Where("room_id = ? AND user_id IS NOT NULL", roomID).
		Order("id").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	members := make([]MemberInfo, 0, len(memberships))
	for _, m := range memberships {
		members = append(members, MemberInfo{
			UserID:      *m.UserID,
			DisplayName: displayLabel(m),
			IsOwner:     *m.UserID == room.OwnerID,
		})
	}
	return members, nil
}

// StartGame moves the room to playing and seeds one empty guess per
// claimed member per round, all in one transaction. Calling it on a room
// that is already playing is a no-op.
func (s *Server) StartGame(ctx context.Context, roomID uint) error {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	started := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := findRoomTx(tx, roomID)
		if err != nil {
			return err
		}
		if room.Status == db.RoomPlaying {
			return nil
		}
		if room.Status == db.RoomFinished {
			return ErrRoomFinished
		}
		var memberships []db.Membership
		if err := tx.Where("room_id = ? AND user_id IS NOT NULL", roomID).Order("id").Find(&memberships).Error; err != nil {
			return err
		}
		if len(memberships) == 0 {
			return ErrNoPlayersJoined
		}
		rounds, err := roomRoundCountTx(tx, room)
		if err != nil {
			return err
		}
		if rounds == 0 {
			return ErrNoMoreRounds
		}
		if err := tx.Model(&db.Room{}).Where("id = ?", roomID).
			Updates(map[string]any{"status": db.RoomPlaying, "current_round": 1}).Error; err != nil {
			return err
		}
		for _, m := range memberships {
			for round := 1; round <= rounds; round++ {
				guess := db.Guess{RoomID: roomID, Round: round, GuesserID: *m.UserID}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&guess).Error; err != nil {
					return err
				}
			}
		}
		started = true
		return nil
	})
	if err != nil {
		return err
	}
	if !started {
		return nil
	}

	s.recordEvent(roomID, "game_started", EventPayload{RoomID: roomID})
	log.Printf("game started room_id=%d", roomID)
	s.hub.Broadcast(roomID, outboundEvent{Type: eventGameStarted, RoomID: roomID})
	return nil
}

func (s *Server) findRoom(ctx context.Context, roomID uint) (*db.Room, error) {
	return findRoomTx(s.db.WithContext(ctx), roomID)
}

func findRoomTx(tx *gorm.DB, roomID uint) (*db.Room, error) {
	var room db.Room
	if err := tx.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// contributorHandles lists every contributor the importer knows about:
// track adders first in playlist order, then any collaborator the
// catalog reports who has no track of their own, in sorted order.
func contributorHandles(tracks []db.Track, names map[string]string) []string {
	seen := make(map[string]struct{})
	handles := make([]string, 0, len(names))
	for _, track := range tracks {
		if _, ok := seen[track.AddedBy]; ok {
			continue
		}
		seen[track.AddedBy] = struct{}{}
		handles = append(handles, track.AddedBy)
	}
	extras := make([]string, 0, len(names))
	for handle := range names {
		if _, ok := seen[handle]; !ok {
			extras = append(extras, handle)
		}
	}
	sort.Strings(extras)
	return append(handles, extras...)
}

func roomRoundCountTx(tx *gorm.DB, room *db.Room) (int, error) {
	if room.PlaylistID == nil {
		return 0, nil
	}
	var count int64
	if err := tx.Model(&db.Track{}).Where("playlist_id = ?", *room.PlaylistID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func displayLabel(m db.Membership) string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Handle
}
