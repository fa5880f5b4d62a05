package server

import (
	"context"
	"errors"
	"log"
	"strings"

	"whosetune/internal/db"

	"gorm.io/gorm"
)

// GuessResult is one guesser's outcome for a resolved round.
type GuessResult struct {
	GuesserID uint   `json:"user_id"`
	Answer    string `json:"answer"`
	Correct   bool   `json:"correct"`
}

// RoundResolution is what resolving a round produces: the ground truth,
// every guesser's outcome, and whether any rounds remain.
type RoundResolution struct {
	Round         int           `json:"round"`
	ContributorID string        `json:"contributor"`
	Answer        string        `json:"answer"`
	Results       []GuessResult `json:"results"`
	Finished      bool          `json:"finished"`
}

// RoundInfo describes the currently open round for connected clients.
type RoundInfo struct {
	Round      int      `json:"round"`
	Rounds     int      `json:"rounds"`
	Title      string   `json:"title"`
	Artist     string   `json:"artist"`
	DurationMS int      `json:"duration_ms"`
	Choices    []string `json:"choices"`
}

// SubmitGuess overwrites the caller's pending guess for the current
// round. Last write wins until the round is resolved. A guesser without
// a seeded guess row is not part of the game and is rejected.
func (s *Server) SubmitGuess(ctx context.Context, roomID, guesserID uint, choice string) error {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return ErrInvalidInput
	}

	unlock := s.locks.Lock(roomID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := findRoomTx(tx, roomID)
		if err != nil {
			return err
		}
		if room.Status != db.RoomPlaying {
			return ErrRoomNotPlaying
		}
		if room.CurrentRound < 1 || room.ResolvedRound >= room.CurrentRound {
			return ErrNoActiveRound
		}
		result := tx.Model(&db.Guess{}).
			Where("room_id = ? AND round = ? AND guesser_id = ?", roomID, room.CurrentRound, guesserID).
			Update("answer", choice)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNoActiveRound
		}
		return nil
	})
}

// ResolveRound scores the current round against the track's contributor
// under the room lock: every guess either landed before the cut-off and
// counts, or not at all. Correct guesses add exactly one point.
func (s *Server) ResolveRound(ctx context.Context, roomID uint) (*RoundResolution, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	resolution := &RoundResolution{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := findRoomTx(tx, roomID)
		if err != nil {
			return err
		}
		if room.Status != db.RoomPlaying {
			return ErrRoomNotPlaying
		}
		if room.CurrentRound < 1 {
			return ErrNoActiveRound
		}
		if room.ResolvedRound >= room.CurrentRound {
			return ErrRoundAlreadyResolved
		}
		track, err := trackForRoundTx(tx, room, room.CurrentRound)
		if err != nil {
			return err
		}
		answer := track.AddedBy
		var owning db.Membership
		if err := tx.Where("room_id = ? AND handle = ?", roomID, track.AddedBy).First(&owning).Error; err == nil {
			answer = displayLabel(owning)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var guesses []db.Guess
		if err := tx.Where("room_id = ? AND round = ?", roomID, room.CurrentRound).
			Order("id").
			Find(&guesses).Error; err != nil {
			return err
		}
		results := make([]GuessResult, 0, len(guesses))
		for _, guess := range guesses {
			correct := guess.Answer != "" && guess.Answer == answer
			results = append(results, GuessResult{
				GuesserID: guess.GuesserID,
				Answer:    guess.Answer,
				Correct:   correct,
			})
			if correct {
				if err := tx.Model(&db.Membership{}).
					Where("room_id = ? AND user_id = ?", roomID, guess.GuesserID).
					Update("score", gorm.Expr("score + 1")).Error; err != nil {
					return err
				}
			}
		}
		if err := tx.Model(&db.Room{}).Where("id = ?", roomID).
			Update("resolved_round", room.CurrentRound).Error; err != nil {
			return err
		}
		rounds, err := roomRoundCountTx(tx, room)
		if err != nil {
			return err
		}
		resolution.Round = room.CurrentRound
		resolution.ContributorID = track.AddedBy
		resolution.Answer = answer
		resolution.Results = results
		resolution.Finished = room.CurrentRound >= rounds
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordEvent(roomID, "round_resolved", EventPayload{
		RoomID: roomID,
		Round:  resolution.Round,
	})
	log.Printf("round resolved room_id=%d round=%d guesses=%d", roomID, resolution.Round, len(resolution.Results))
	return resolution, nil
}

// AdvanceRound moves the room to the next round, or finishes the game
// when the playlist is exhausted. Returns the newly opened round number.
func (s *Server) AdvanceRound(ctx context.Context, roomID uint) (int, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	next := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := findRoomTx(tx, roomID)
		if err != nil {
			return err
		}
		if room.Status != db.RoomPlaying {
			return ErrRoomNotPlaying
		}
		rounds, err := roomRoundCountTx(tx, room)
		if err != nil {
			return err
		}
		if room.CurrentRound >= rounds {
			if err := tx.Model(&db.Room{}).Where("id = ?", roomID).
				Update("status", db.RoomFinished).Error; err != nil {
				return err
			}
			return ErrNoMoreRounds
		}
		next = room.CurrentRound + 1
		return tx.Model(&db.Room{}).Where("id = ?", roomID).
			Update("current_round", next).Error
	})
	if err != nil {
		if errors.Is(err, ErrNoMoreRounds) {
			s.recordEvent(roomID, "game_finished", EventPayload{RoomID: roomID})
			log.Printf("game finished room_id=%d", roomID)
		}
		return 0, err
	}

	s.recordEvent(roomID, "round_advanced", EventPayload{RoomID: roomID, Round: next})
	return next, nil
}

// CurrentRoundInfo returns what clients need to render the open round:
// the track being played and the names they can pick from.
func (s *Server) CurrentRoundInfo(ctx context.Context, roomID uint) (*RoundInfo, error) {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != db.RoomPlaying {
		return nil, ErrRoomNotPlaying
	}
	if room.CurrentRound < 1 {
		return nil, ErrNoActiveRound
	}
	tx := s.db.WithContext(ctx)
	track, err := trackForRoundTx(tx, room, room.CurrentRound)
	if err != nil {
		return nil, err
	}
	rounds, err := roomRoundCountTx(tx, room)
	if err != nil {
		return nil, err
	}
	var memberships []db.Membership
	if err := tx.Where("room_id = ? AND user_id IS NOT NULL", roomID).Order("id").Find(&memberships).Error; err != nil {
		return nil, err
	}
	choices := make([]string, 0, len(memberships))
	for _, m := range memberships {
		choices = append(choices, displayLabel(m))
	}
	return &RoundInfo{
		Round:      room.CurrentRound,
		Rounds:     rounds,
		Title:      track.Title,
		Artist:     track.Artist,
		DurationMS: track.DurationMS,
		Choices:    choices,
	}, nil
}

// CurrentStanding snapshots the scoreboard in membership creation order.
func (s *Server) CurrentStanding(ctx context.Context, roomID uint) (*Standing, error) {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	var memberships []db.Membership
	if err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	standing := &Standing{
		OwnerID: room.OwnerID,
		Round:   room.CurrentRound,
		Status:  room.Status,
	}
	for _, m := range memberships {
		standing.Entries = append(standing.Entries, StandingEntry{
			Name:  displayLabel(m),
			Score: m.Score,
		})
	}
	return standing, nil
}

func trackForRoundTx(tx *gorm.DB, room *db.Room, round int) (*db.Track, error) {
	if room.PlaylistID == nil {
		return nil, ErrNoActiveRound
	}
	var track db.Track
	if err := tx.Where("playlist_id = ? AND number = ?", *room.PlaylistID, round).First(&track).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveRound
		}
		return nil, err
	}
	return &track, nil
}
