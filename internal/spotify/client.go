package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"whosetune/internal/config"
)

// ErrInvalidReference marks playlist references that do not parse as a
// Spotify playlist URL or URI.
var ErrInvalidReference = errors.New("invalid playlist reference")

var playlistIDPattern = regexp.MustCompile(`(?i)(?:spotify:playlist:|https://open\.spotify\.com/playlist/)([a-zA-Z0-9]+)`)

type Track struct {
	Title      string
	Artist     string
	DurationMS int
	AddedBy    string
}

// Playlist is the importer's view of an external playlist: an ordered
// track list plus the display names of everyone who contributed to it.
type Playlist struct {
	SpotifyID        string
	Name             string
	Owner            string
	Tracks           []Track
	ContributorNames map[string]string
}

type Client struct {
	clientID     string
	clientSecret string
	tokenURL     string
	apiURL       string
	httpClient   *http.Client
}

func New(cfg config.Config) *Client {
	return &Client{
		clientID:     cfg.SpotifyClientID,
		clientSecret: cfg.SpotifyClientSecret,
		tokenURL:     cfg.SpotifyTokenURL,
		apiURL:       strings.TrimRight(cfg.SpotifyAPIURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// ExtractPlaylistID pulls the playlist id out of an open.spotify.com URL
// or a spotify:playlist: URI.
func ExtractPlaylistID(reference string) (string, bool) {
	match := playlistIDPattern.FindStringSubmatch(strings.TrimSpace(reference))
	if match == nil {
		return "", false
	}
	return match[1], true
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type playlistResponse struct {
	Name  string `json:"name"`
	Owner struct {
		DisplayName string `json:"display_name"`
	} `json:"owner"`
	Tracks struct {
		Href string `json:"href"`
	} `json:"tracks"`
}

type trackPageResponse struct {
	Items []struct {
		AddedBy *struct {
			ID string `json:"id"`
		} `json:"added_by"`
		Track struct {
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			DurationMS int `json:"duration_ms"`
		} `json:"track"`
	} `json:"items"`
	Next string `json:"next"`
}

type userResponse struct {
	DisplayName string `json:"display_name"`
}

// ResolvePlaylist fetches the playlist metadata and every track page.
// Safe to call repeatedly for the same reference; the caller keys
// persistence on SpotifyID.
func (c *Client) ResolvePlaylist(ctx context.Context, reference string) (*Playlist, error) {
	id, ok := ExtractPlaylistID(reference)
	if !ok {
		return nil, ErrInvalidReference
	}
	token, err := c.fetchToken(ctx)
	if err != nil {
		return nil, err
	}

	var meta playlistResponse
	if err := c.getJSON(ctx, token, c.apiURL+"/playlists/"+id, &meta); err != nil {
		return nil, err
	}

	playlist := &Playlist{
		SpotifyID:        id,
		Name:             meta.Name,
		Owner:            meta.Owner.DisplayName,
		ContributorNames: make(map[string]string),
	}

	next := meta.Tracks.Href
	if next == "" {
		next = c.apiURL + "/playlists/" + id + "/tracks"
	}
	for next != "" {
		var page trackPageResponse
		if err := c.getJSON(ctx, token, next, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			addedBy := "Unknown"
			if item.AddedBy != nil && item.AddedBy.ID != "" {
				addedBy = item.AddedBy.ID
			}
			artists := make([]string, 0, len(item.Track.Artists))
			for _, artist := range item.Track.Artists {
				artists = append(artists, artist.Name)
			}
			playlist.Tracks = append(playlist.Tracks, Track{
				Title:      item.Track.Name,
				Artist:     strings.Join(artists, ", "),
				DurationMS: item.Track.DurationMS,
				AddedBy:    addedBy,
			})
			if _, seen := playlist.ContributorNames[addedBy]; !seen {
				playlist.ContributorNames[addedBy] = c.lookupDisplayName(ctx, token, addedBy)
			}
		}
		next = page.Next
	}
	return playlist, nil
}

// lookupDisplayName is best effort; contributor handles stand in for
// profiles we cannot read.
func (c *Client) lookupDisplayName(ctx context.Context, token, handle string) string {
	if handle == "" || handle == "Unknown" {
		return handle
	}
	var user userResponse
	if err := c.getJSON(ctx, token, c.apiURL+"/users/"+url.PathEscape(handle), &user); err != nil {
		return handle
	}
	if user.DisplayName == "" {
		return handle
	}
	return user.DisplayName
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request")
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach Spotify")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read Spotify token response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("Spotify token request failed (%d)", resp.StatusCode)
	}
	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse Spotify token response")
	}
	if parsed.AccessToken == "" {
		return "", errors.New("Spotify returned no access token")
	}
	return parsed.AccessToken, nil
}

func (c *Client) getJSON(ctx context.Context, token, endpoint string, dest any) error {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build Spotify request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach Spotify")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Spotify response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Spotify request failed (%d)", resp.StatusCode)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to parse Spotify response")
	}
	return nil
}
