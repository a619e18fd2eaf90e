package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/selfmusic/player/internal/config"
	"github.com/selfmusic/player/pkg/types"
)

type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
	token      string
	userAgent  string
	debug      bool

	requestCount  int64
	errorCount    int64
	lastRequestAt time.Time
}

func NewClient(cfg *config.Config) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.API.Retries
	retryClient.HTTPClient.Timeout = time.Duration(cfg.API.Timeout) * time.Second
	retryClient.Logger = nil

	if cfg.Debug {
		retryClient.Logger = &debugLogger{}
	}

	limiter := rate.NewLimiter(
		rate.Limit(cfg.API.RateLimit.RequestsPerSecond),
		cfg.API.RateLimit.BurstSize,
	)

	client := &Client{
		baseURL:    cfg.API.BaseURL,
		httpClient: retryClient,
		limiter:    limiter,
		token:      cfg.API.Token,
		userAgent:  cfg.API.UserAgent,
		debug:      cfg.Debug,
	}

	client.debugLog("API client initialized - Base URL: %s, Debug: %v", cfg.API.BaseURL, cfg.Debug)

	return client
}

type debugLogger struct{}

func (d *debugLogger) Printf(format string, args ...interface{}) {
	log.Printf("[HTTP] "+format, args...)
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if !c.debug {
		return
	}
	log.Printf("[API] "+format, args...)
}

func (c *Client) debugRequest(method, url string) {
	if !c.debug {
		return
	}

	c.requestCount++
	c.lastRequestAt = time.Now()
	c.debugLog("REQUEST #%d %s %s", c.requestCount, method, url)
}

func (c *Client) debugResponse(method, url string, statusCode int, duration time.Duration, err error) {
	if !c.debug {
		return
	}

	if err != nil {
		c.errorCount++
		log.Printf("[API] ERROR %s %s - Status: %d - Duration: %v - Error: %v",
			method, url, statusCode, duration, err)
	}
}

// envelope is the response wrapper every backend endpoint uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
}

func (c *Client) makeRequest(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error) {
	startTime := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	c.debugRequest(method, fullURL)

	var reqBody io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.debugResponse(method, fullURL, 0, time.Since(startTime), err)
		return nil, fmt.Errorf("do request: %w", err)
	}

	responseBody, readErr := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.debugLog("Failed to close response body: %v", closeErr)
	}

	if readErr != nil {
		c.debugResponse(method, fullURL, resp.StatusCode, time.Since(startTime), readErr)
		return nil, fmt.Errorf("read response body: %w", readErr)
	}

	c.debugResponse(method, fullURL, resp.StatusCode, time.Since(startTime), nil)

	if resp.StatusCode >= http.StatusBadRequest {
		var env envelope
		if json.Unmarshal(responseBody, &env) == nil && env.Error != nil && *env.Error != "" {
			err := fmt.Errorf("API error %d: %s", resp.StatusCode, *env.Error)
			c.debugResponse(method, fullURL, resp.StatusCode, time.Since(startTime), err)
			return nil, err
		}

		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		c.debugResponse(method, fullURL, resp.StatusCode, time.Since(startTime), err)
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(responseBody, &env); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}
	if !env.Success {
		msg := resp.Status
		if env.Error != nil && *env.Error != "" {
			msg = *env.Error
		}
		return nil, fmt.Errorf("API error: %s", msg)
	}

	return env.Data, nil
}

// normalizeSong fills the legacy single-artist field from the artists list
// so callers can rely on either shape being present.
func normalizeSong(s *types.Song) {
	if s == nil {
		return
	}
	if s.Artist == nil {
		s.Artist = s.PrimaryArtist()
	}
	if len(s.Artists) == 0 && s.Artist != nil {
		s.Artists = []*types.Artist{s.Artist}
	}
}

func normalizeSongs(songs []*types.Song) {
	for _, s := range songs {
		normalizeSong(s)
	}
}

func (c *Client) GetSongs(ctx context.Context, page, limit int) (*types.SongListResponse, error) {
	c.debugLog("Getting songs - page: %d, limit: %d", page, limit)

	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	data, err := c.makeRequest(ctx, http.MethodGet, "/api/songs", params, nil)
	if err != nil {
		return nil, fmt.Errorf("get songs: %w", err)
	}

	var result types.SongListResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode songs response: %w", err)
	}
	normalizeSongs(result.Data)

	c.debugLog("Retrieved %d songs (page %d of %d)", len(result.Data), result.Page, result.TotalPages)
	return &result, nil
}

func (c *Client) GetSong(ctx context.Context, id string) (*types.Song, error) {
	c.debugLog("Getting song: %s", id)

	data, err := c.makeRequest(ctx, http.MethodGet, "/api/songs/"+id, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get song: %w", err)
	}

	var song types.Song
	if err := json.Unmarshal(data, &song); err != nil {
		return nil, fmt.Errorf("decode song response: %w", err)
	}
	normalizeSong(&song)

	c.debugLog("Retrieved song: %s", song.Title)
	return &song, nil
}

func (c *Client) getSongList(ctx context.Context, what, path string, limit int) ([]*types.Song, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	data, err := c.makeRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, fmt.Errorf("get %s songs: %w", what, err)
	}

	var songs []*types.Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, fmt.Errorf("decode %s songs response: %w", what, err)
	}
	normalizeSongs(songs)

	c.debugLog("Retrieved %d %s songs", len(songs), what)
	return songs, nil
}

func (c *Client) GetHotSongs(ctx context.Context, limit int) ([]*types.Song, error) {
	return c.getSongList(ctx, "hot", "/api/hot/songs", limit)
}

func (c *Client) GetTrendingSongs(ctx context.Context, limit int) ([]*types.Song, error) {
	return c.getSongList(ctx, "trending", "/api/trending/songs", limit)
}

func (c *Client) GetNewSongs(ctx context.Context, limit int) ([]*types.Song, error) {
	return c.getSongList(ctx, "new", "/api/new/songs", limit)
}

func (c *Client) GetMoodSongs(ctx context.Context, moodID string, limit int) ([]*types.Song, error) {
	return c.getSongList(ctx, "mood", "/api/moods/"+moodID+"/songs", limit)
}

func (c *Client) GetMoods(ctx context.Context) ([]*types.Mood, error) {
	c.debugLog("Getting moods...")

	data, err := c.makeRequest(ctx, http.MethodGet, "/api/moods", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get moods: %w", err)
	}

	var moods []*types.Mood
	if err := json.Unmarshal(data, &moods); err != nil {
		return nil, fmt.Errorf("decode moods response: %w", err)
	}

	c.debugLog("Retrieved %d moods", len(moods))
	return moods, nil
}

// RecordPlay reports one play start for the song. The backend counts it once
// per request; deduplication is the caller's job.
func (c *Client) RecordPlay(ctx context.Context, songID string) error {
	c.debugLog("Recording play for song: %s", songID)

	_, err := c.makeRequest(ctx, http.MethodPost, "/api/songs/"+songID+"/play", nil, map[string]any{})
	if err != nil {
		return fmt.Errorf("record play: %w", err)
	}

	c.debugLog("Play recorded for song: %s", songID)
	return nil
}

// StreamURL returns the audio URL for a song, falling back to the backend
// stream endpoint when the song carries no direct URL.
func (c *Client) StreamURL(song *types.Song) string {
	if song == nil {
		return ""
	}
	if song.AudioURL != nil && *song.AudioURL != "" {
		return *song.AudioURL
	}
	return c.baseURL + "/api/songs/" + song.ID + "/stream"
}

func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

func (c *Client) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"total_requests":  c.requestCount,
		"total_errors":    c.errorCount,
		"last_request_at": c.lastRequestAt,
		"base_url":        c.baseURL,
	}
}
