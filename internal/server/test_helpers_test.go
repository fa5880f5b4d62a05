package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"whosetune/internal/config"
	"whosetune/internal/db"
	"whosetune/internal/spotify"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeImporter struct {
	mu       sync.Mutex
	playlist *spotify.Playlist
	err      error
	calls    int
}

func (f *fakeImporter) ResolvePlaylist(ctx context.Context, reference string) (*spotify.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := spotify.ExtractPlaylistID(reference); !ok {
		return nil, spotify.ErrInvalidReference
	}
	return f.playlist, nil
}

func (f *fakeImporter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

const testPlaylistURL = "https://open.spotify.com/playlist/2qLXVvQivgEtbFlBxeBnnL"

// twoTrackPlaylist has tracks added by alice (round 1) and bob (round 2),
// with carol known to the catalog as a contributor without a track.
func twoTrackPlaylist() *spotify.Playlist {
	return &spotify.Playlist{
		SpotifyID: "2qLXVvQivgEtbFlBxeBnnL",
		Name:      "Road Trip",
		Owner:     "Alice",
		Tracks: []spotify.Track{
			{Title: "Track One", Artist: "Artist A", DurationMS: 180000, AddedBy: "alice-spotify"},
			{Title: "Track Two", Artist: "Artist B", DurationMS: 200000, AddedBy: "bob-spotify"},
		},
		ContributorNames: map[string]string{
			"alice-spotify": "Alice",
			"bob-spotify":   "Bob",
			"carol-spotify": "Carol",
		},
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.OpenSQLite()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestEnv(t *testing.T) (*Server, *gorm.DB, *fakeImporter) {
	t.Helper()
	conn := newTestDB(t)
	importer := &fakeImporter{playlist: twoTrackPlaylist()}
	srv := New(conn, config.Default(), importer)
	return srv, conn, importer
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

func createUser(t *testing.T, conn *gorm.DB, email string) uint {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := db.User{Email: email, PasswordHash: string(hash)}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user.ID
}

// threeMemberRoom creates a room from the two-track playlist and claims
// all three handles, returning the room id and the user ids in order
// alice, bob, carol.
func threeMemberRoom(t *testing.T, srv *Server, conn *gorm.DB) (uint, [3]uint) {
	t.Helper()
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")
	bob := createUser(t, conn, "bob@example.com")
	carol := createUser(t, conn, "carol@example.com")

	room, err := srv.CreateRoom(ctx, alice, testPlaylistURL)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	claims := []struct {
		userID uint
		name   string
		handle string
	}{
		{alice, "alice", "alice-spotify"},
		{bob, "bob", "bob-spotify"},
		{carol, "carol", "carol-spotify"},
	}
	for _, claim := range claims {
		if err := srv.ClaimHandle(ctx, room.ID, claim.userID, claim.name, claim.handle); err != nil {
			t.Fatalf("claim %s: %v", claim.handle, err)
		}
	}
	return room.ID, [3]uint{alice, bob, carol}
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func registerAndLogin(t *testing.T, ts *httptest.Server, email string) (string, uint) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/register", "", map[string]string{
		"email":    email,
		"password": "password1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	resp = doRequest(t, ts, http.MethodPost, "/api/login", "", map[string]string{
		"email":    email,
		"password": "password1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("expected a login token")
	}
	userID, _ := body["user_id"].(float64)
	return token, uint(userID)
}
