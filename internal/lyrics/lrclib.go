package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"karolbroda.com/lyricsync/internal/track"
)

var (
	ErrNoLyrics = errors.New("no lyrics found")
	ErrTimeout  = errors.New("lyrics server took too long to respond")
)

const (
	DefaultRequestTimeout = 10 * time.Second
	strategyDelay         = 100 * time.Millisecond
	userAgent             = "lyricsync/1.0"
)

// Payload is what the lyrics service knows about one track.
type Payload struct {
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

func (p *Payload) IsEmpty() bool {
	return p == nil || (p.PlainLyrics == "" && p.SyncedLyrics == "" && !p.Instrumental)
}

// Client talks to the lrclib.net get endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

func NewClient(baseURL string) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 2 * time.Second,
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   DefaultRequestTimeout,
		},
		timeout: DefaultRequestTimeout,
	}
}

// WithHTTPClient swaps the transport, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type searchStrategy struct {
	artist   string
	title    string
	album    string
	duration int64
}

// FetchLyrics tries a series of increasingly loose queries until one returns
// lyrics or an instrumental marker.
func (c *Client) FetchLyrics(ctx context.Context, trk *track.Info) (*Payload, error) {
	if trk == nil {
		return nil, errors.New("nil track info")
	}
	if trk.Title == "" || trk.Artist == "" {
		return nil, errors.New("track title or artist is empty")
	}
	if c.baseURL == "" {
		return nil, errors.New("lrclib base url is empty")
	}

	parsedURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid lrclib url %q: %w", c.baseURL, err)
	}

	strategies := buildStrategies(trk)
	if len(strategies) == 0 {
		return nil, errors.New("track title or artist is empty after normalization")
	}

	var lastErr error
	for i, strategy := range strategies {
		query := url.Values{}
		query.Set("artist_name", strategy.artist)
		query.Set("track_name", strategy.title)
		if strategy.album != "" {
			query.Set("album_name", strategy.album)
		}
		if strategy.duration > 0 {
			query.Set("duration", fmt.Sprintf("%d", strategy.duration))
		}
		parsedURL.RawQuery = query.Encode()

		// small delay between strategies to avoid hammering the server
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(strategyDelay):
			}
		}

		payload, err := c.doRequest(ctx, parsedURL.String())
		if err == nil {
			if payload.IsEmpty() {
				lastErr = ErrNoLyrics
				continue
			}
			log.Debug().
				Str("component", "lrclib").
				Int("strategy", i).
				Str("track", trk.String()).
				Bool("synced", payload.SyncedLyrics != "").
				Bool("instrumental", payload.Instrumental).
				Msg("lyrics found")
			return payload, nil
		}

		lastErr = err
		log.Debug().Str("component", "lrclib").Int("strategy", i).Err(err).Msg("strategy failed")

		if isTimeoutError(err) {
			return nil, ErrTimeout
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("no lyrics found for %s: %w", trk.String(), lastErr)
	}
	return nil, fmt.Errorf("no lyrics found for %s: %w", trk.String(), ErrNoLyrics)
}

func buildStrategies(trk *track.Info) []searchStrategy {
	artist := normalizeString(trk.Artist)
	title := normalizeString(trk.Title)
	if artist == "" || title == "" {
		return nil
	}

	var durationSecs int64
	if secs, ok := trk.KnownDuration(); ok {
		durationSecs = int64(secs)
	}

	candidates := []searchStrategy{
		{artist, title, trk.Album, durationSecs},
		{artist, title, "", durationSecs},
		{artist, title, "", 0},
		{stripVersionInfo(trk.Artist), stripVersionInfo(trk.Title), "", 0},
		{strings.ToUpper(artist), strings.ToUpper(title), "", 0},
		{strings.ToLower(artist), strings.ToLower(title), "", 0},
		{toTitleCase(artist), toTitleCase(title), "", 0},
		{trk.Artist, trk.Title, "", 0},
	}

	seen := make(map[searchStrategy]bool)
	unique := make([]searchStrategy, 0, len(candidates))
	for _, s := range candidates {
		if s.artist == "" || s.title == "" || seen[s] {
			continue
		}
		seen[s] = true
		unique = append(unique, s)
	}
	return unique
}

func (c *Client) doRequest(parentCtx context.Context, requestURL string) (*Payload, error) {
	ctx, cancel := context.WithTimeout(parentCtx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build http request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("status 404: %w", ErrNoLyrics)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("lrclib returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode lrclib json: %w", err)
	}

	return &payload, nil
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "i/o timeout")
}

// normalizeString collapses runs of whitespace.
func normalizeString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripVersionInfo removes parenthesised and bracketed suffixes such as
// "(Remastered 2011)" or "[Live]".
func stripVersionInfo(s string) string {
	for _, pair := range [][2]string{{"(", ")"}, {"[", "]"}} {
		for {
			start := strings.Index(s, pair[0])
			end := strings.Index(s, pair[1])
			if start < 0 || end <= start {
				break
			}
			s = s[:start] + " " + s[end+1:]
		}
	}
	return normalizeString(s)
}

func toTitleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		words[i] = strings.ToUpper(string(runes[0])) + strings.ToLower(string(runes[1:]))
	}
	return strings.Join(words, " ")
}
