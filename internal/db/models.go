package db

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoomSettingUp = "setting_up"
	RoomPlaying   = "playing"
	RoomFinished  = "finished"
)

type User struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"size:254;uniqueIndex;not null"`
	PasswordHash string    `gorm:"size:128;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type Playlist struct {
	ID        uint      `gorm:"primaryKey"`
	SpotifyID string    `gorm:"size:64;uniqueIndex;not null"`
	Name      string    `gorm:"size:200;not null"`
	OwnerName string    `gorm:"size:100"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Tracks    []Track
}

// Track.Number is the 1-based round the track is played in.
type Track struct {
	ID         uint      `gorm:"primaryKey"`
	PlaylistID uint      `gorm:"index;not null;uniqueIndex:idx_tracks_playlist_number"`
	Number     int       `gorm:"not null;uniqueIndex:idx_tracks_playlist_number"`
	Title      string    `gorm:"size:300;not null"`
	Artist     string    `gorm:"size:300"`
	DurationMS int       `gorm:"not null;default:0"`
	AddedBy    string    `gorm:"size:100;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

type Room struct {
	ID           uint  `gorm:"primaryKey"`
	OwnerID      uint  `gorm:"index;not null"`
	PlaylistID   *uint `gorm:"index"`
	CurrentRound int   `gorm:"not null;default:0"`
	// ResolvedRound is the highest round number already scored; it trails
	// CurrentRound by at most one and stops a round from being scored twice.
	ResolvedRound int       `gorm:"not null;default:0"`
	Status        string    `gorm:"size:32;not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
	Memberships   []Membership
	Guesses       []Guess
	Events        []Event
}

// Membership binds a playlist contributor handle to a joined user.
// UserID stays nil and DisplayName empty until someone claims the handle;
// ContributorName is the catalog's display name for the handle and never
// changes after import.
type Membership struct {
	ID              uint      `gorm:"primaryKey"`
	RoomID          uint      `gorm:"index;not null;uniqueIndex:idx_memberships_room_handle"`
	Handle          string    `gorm:"size:100;not null;uniqueIndex:idx_memberships_room_handle"`
	ContributorName string    `gorm:"size:100"`
	UserID          *uint     `gorm:"index"`
	DisplayName     string    `gorm:"size:64"`
	Score           int       `gorm:"not null;default:0"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

type Guess struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uint      `gorm:"index;not null;uniqueIndex:idx_guesses_room_round_guesser"`
	Round     int       `gorm:"not null;uniqueIndex:idx_guesses_room_round_guesser"`
	GuesserID uint      `gorm:"not null;uniqueIndex:idx_guesses_room_round_guesser"`
	Answer    string    `gorm:"size:64;not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	RoomID    uint           `gorm:"index;not null"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
