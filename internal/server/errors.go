package server

import (
	"errors"
	"net/http"

	"github.com/jackc/pgconn"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidPlaylist      = errors.New("playlist reference is not valid")
	ErrCatalogUnavailable   = errors.New("music catalog is unavailable")
	ErrUserNotFound         = errors.New("user not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomFinished         = errors.New("room is finished")
	ErrRoomAlreadyPlaying   = errors.New("room is already playing")
	ErrHandleNotFound       = errors.New("contributor handle not found")
	ErrHandleAlreadyClaimed = errors.New("handle is already claimed")
	ErrNoPlayersJoined      = errors.New("no players have joined")
	ErrRoomNotPlaying       = errors.New("room is not playing")
	ErrNoActiveRound        = errors.New("no active round")
	ErrRoundAlreadyResolved = errors.New("round is already resolved")
	ErrNoMoreRounds         = errors.New("no more rounds")
	ErrEmailTaken           = errors.New("email is already registered")
	ErrInvalidCredentials   = errors.New("invalid email or password")
)

// statusFor maps domain failures onto HTTP status codes. Anything not
// recognized is a store or importer fault and reads as a server error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidPlaylist):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrRoomNotFound),
		errors.Is(err, ErrHandleNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrHandleAlreadyClaimed), errors.Is(err, ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, ErrRoomFinished),
		errors.Is(err, ErrRoomAlreadyPlaying),
		errors.Is(err, ErrNoPlayersJoined),
		errors.Is(err, ErrRoomNotPlaying),
		errors.Is(err, ErrNoActiveRound),
		errors.Is(err, ErrRoundAlreadyResolved),
		errors.Is(err, ErrNoMoreRounds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCatalogUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
