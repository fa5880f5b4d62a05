package spotify

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"whosetune/internal/config"
)

func TestExtractPlaylistID(t *testing.T) {
	cases := []struct {
		reference string
		id        string
		ok        bool
	}{
		{"https://open.spotify.com/playlist/2qLXVvQivgEtbFlBxeBnnL", "2qLXVvQivgEtbFlBxeBnnL", true},
		{"https://open.spotify.com/playlist/2qLXVvQivgEtbFlBxeBnnL?si=abc123", "2qLXVvQivgEtbFlBxeBnnL", true},
		{"spotify:playlist:2qLXVvQivgEtbFlBxeBnnL", "2qLXVvQivgEtbFlBxeBnnL", true},
		{"  https://open.spotify.com/playlist/2qLXVvQivgEtbFlBxeBnnL  ", "2qLXVvQivgEtbFlBxeBnnL", true},
		{"https://open.spotify.com/album/2qLXVvQivgEtbFlBxeBnnL", "", false},
		{"just some text", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		id, ok := ExtractPlaylistID(tc.reference)
		if ok != tc.ok || id != tc.id {
			t.Fatalf("%q: expected (%q, %v), got (%q, %v)", tc.reference, tc.id, tc.ok, id, ok)
		}
	}
}

func newFakeSpotify(t *testing.T, handler http.Handler) *httptest.Server {
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
	t.Cleanup(ts.Close)
	return ts
}

func TestResolvePlaylistWalksPages(t *testing.T) {
	mux := http.NewServeMux()
	var ts *httptest.Server

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		if r.FormValue("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
	})
	mux.HandleFunc("/v1/playlists/2qLXVvQivgEtbFlBxeBnnL", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"name":  "Road Trip",
			"owner": map[string]string{"display_name": "Alice"},
			"tracks": map[string]string{
				"href": ts.URL + "/v1/playlists/2qLXVvQivgEtbFlBxeBnnL/tracks",
			},
		})
	})
	page := func(items []map[string]any, next string) map[string]any {
		return map[string]any{"items": items, "next": next}
	}
	trackItem := func(addedBy, title string, artists []string, duration int) map[string]any {
		names := make([]map[string]string, 0, len(artists))
		for _, artist := range artists {
			names = append(names, map[string]string{"name": artist})
		}
		item := map[string]any{
			"track": map[string]any{
				"name":        title,
				"artists":     names,
				"duration_ms": duration,
			},
		}
		if addedBy != "" {
			item["added_by"] = map[string]string{"id": addedBy}
		}
		return item
	}
	mux.HandleFunc("/v1/playlists/2qLXVvQivgEtbFlBxeBnnL/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "2" {
			json.NewEncoder(w).Encode(page([]map[string]any{
				trackItem("", "Mystery Song", []string{"Artist C"}, 150000),
			}, ""))
			return
		}
		json.NewEncoder(w).Encode(page([]map[string]any{
			trackItem("alice-spotify", "Track One", []string{"Artist A"}, 180000),
			trackItem("bob-spotify", "Track Two", []string{"Artist B", "Artist B2"}, 200000),
		}, ts.URL+"/v1/playlists/2qLXVvQivgEtbFlBxeBnnL/tracks?offset=2"))
	})
	mux.HandleFunc("/v1/users/alice-spotify", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"display_name": "Alice"})
	})
	mux.HandleFunc("/v1/users/bob-spotify", func(w http.ResponseWriter, r *http.Request) {
		// No public display name.
		json.NewEncoder(w).Encode(map[string]string{})
	})

	ts = newFakeSpotify(t, mux)
	cfg := config.Default()
	cfg.SpotifyClientID = "client-id"
	cfg.SpotifyClientSecret = "client-secret"
	cfg.SpotifyTokenURL = ts.URL + "/token"
	cfg.SpotifyAPIURL = ts.URL + "/v1"

	playlist, err := New(cfg).ResolvePlaylist(context.Background(), "https://open.spotify.com/playlist/2qLXVvQivgEtbFlBxeBnnL")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if playlist.SpotifyID != "2qLXVvQivgEtbFlBxeBnnL" {
		t.Fatalf("unexpected id %q", playlist.SpotifyID)
	}
	if playlist.Name != "Road Trip" || playlist.Owner != "Alice" {
		t.Fatalf("unexpected metadata: %q by %q", playlist.Name, playlist.Owner)
	}
	if len(playlist.Tracks) != 3 {
		t.Fatalf("expected 3 tracks across pages, got %d", len(playlist.Tracks))
	}
	if playlist.Tracks[1].Artist != "Artist B, Artist B2" {
		t.Fatalf("expected joined artists, got %q", playlist.Tracks[1].Artist)
	}
	if playlist.Tracks[2].AddedBy != "Unknown" {
		t.Fatalf("expected Unknown adder, got %q", playlist.Tracks[2].AddedBy)
	}
	if playlist.ContributorNames["alice-spotify"] != "Alice" {
		t.Fatalf("expected Alice, got %q", playlist.ContributorNames["alice-spotify"])
	}
	// A contributor with no public name falls back to the handle.
	if playlist.ContributorNames["bob-spotify"] != "bob-spotify" {
		t.Fatalf("expected handle fallback, got %q", playlist.ContributorNames["bob-spotify"])
	}
}

func TestResolvePlaylistRejectsBadReference(t *testing.T) {
	client := New(config.Default())
	if _, err := client.ResolvePlaylist(context.Background(), "not a playlist"); err != ErrInvalidReference {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}

func TestResolvePlaylistTokenFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	ts := newFakeSpotify(t, mux)

	cfg := config.Default()
	cfg.SpotifyTokenURL = ts.URL + "/token"
	cfg.SpotifyAPIURL = ts.URL + "/v1"
	if _, err := New(cfg).ResolvePlaylist(context.Background(), "spotify:playlist:2qLXVvQivgEtbFlBxeBnnL"); err == nil {
		t.Fatal("expected an error when the token endpoint fails")
	}
}
