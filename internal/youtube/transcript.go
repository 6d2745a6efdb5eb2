package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"docquizai/internal/logger"

	kyoutube "github.com/kkdai/youtube/v2"
)

const RE_XML_TRANSCRIPT = `<text start="([^"]*)" dur="([^"]*)"[^>]*>([^<]*)<\/text>`

var reXMLTranscript = regexp.MustCompile(RE_XML_TRANSCRIPT)

// ErrNoTranscript means the video has no captions in the requested language.
var ErrNoTranscript = errors.New("no transcript available")

// Segment is one caption line.
type Segment struct {
	Text       string `json:"text"`
	OffsetMs   int    `json:"offset"`
	DurationMs int    `json:"duration"`
}

// Client fetches captions. The innertube API (kkdai/youtube) is tried first and the
// watch-page scraper is the fallback.
type Client struct {
	yt       *kyoutube.Client
	http     *http.Client
	watchURL string
	log      *logger.Logger
}

func New(log *logger.Logger) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	return &Client{
		yt:       &kyoutube.Client{HTTPClient: httpClient},
		http:     httpClient,
		watchURL: "https://www.youtube.com/watch?v=%s",
		log:      log.With("component", "youtube"),
	}
}

// FetchTranscript returns the captions of a video in the given language. A video
// without captions yields ErrNoTranscript.
func (c *Client) FetchTranscript(ctx context.Context, videoID, lang string) ([]Segment, error) {
	start := time.Now()

	if c.yt != nil {
		segments, err := c.fetchInnertube(ctx, videoID, lang)
		if err == nil && len(segments) > 0 {
			c.log.Debug("transcript fetched", "video_id", videoID, "source", "innertube", "segments", len(segments), "elapsed", time.Since(start))
			return segments, nil
		}
		c.log.Debug("innertube transcript unavailable, falling back to watch page", "video_id", videoID, "error", err)
	}

	segments, err := c.fetchWatchPage(ctx, videoID, lang)
	if err != nil {
		c.log.Warn("transcript fetch failed", "video_id", videoID, "error", err, "elapsed", time.Since(start))
		return nil, err
	}
	c.log.Debug("transcript fetched", "video_id", videoID, "source", "watch_page", "segments", len(segments), "elapsed", time.Since(start))
	return segments, nil
}

func (c *Client) fetchInnertube(ctx context.Context, videoID, lang string) ([]Segment, error) {
	transcript, err := c.yt.GetTranscriptCtx(ctx, &kyoutube.Video{ID: videoID}, lang)
	if err != nil {
		if errors.Is(err, kyoutube.ErrTranscriptDisabled) {
			return nil, ErrNoTranscript
		}
		return nil, err
	}
	segments := make([]Segment, 0, len(transcript))
	for _, t := range transcript {
		segments = append(segments, Segment{
			Text:       html.UnescapeString(t.Text),
			OffsetMs:   t.StartMs,
			DurationMs: t.Duration,
		})
	}
	return segments, nil
}

func (c *Client) fetchWatchPage(ctx context.Context, videoID, lang string) ([]Segment, error) {
	body, err := c.get(ctx, fmt.Sprintf(c.watchURL, videoID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video page: %w", err)
	}

	page := string(body)
	splitted := strings.SplitN(page, `"captions":`, 2)
	if len(splitted) < 2 {
		return nil, fmt.Errorf("%w: video %s has no captions", ErrNoTranscript, videoID)
	}

	var captions struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []struct {
				BaseURL      string `json:"baseUrl"`
				LanguageCode string `json:"languageCode"`
			} `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	}

	captionsData := splitted[1]
	if end := strings.Index(captionsData, `,"videoDetails`); end >= 0 {
		captionsData = captionsData[:end]
	}
	if err := json.NewDecoder(strings.NewReader(captionsData)).Decode(&captions); err != nil {
		return nil, fmt.Errorf("failed to parse captions data: %w", err)
	}

	tracks := captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: video %s has no caption tracks", ErrNoTranscript, videoID)
	}

	transcriptURL := ""
	for _, track := range tracks {
		if lang == "" || track.LanguageCode == lang || strings.HasPrefix(track.LanguageCode, lang+"-") {
			transcriptURL = track.BaseURL
			break
		}
	}
	if transcriptURL == "" {
		return nil, fmt.Errorf("%w: no %s track for video %s", ErrNoTranscript, lang, videoID)
	}

	xmlBody, err := c.get(ctx, transcriptURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transcript: %w", err)
	}
	return parseTimedText(string(xmlBody)), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

// parseTimedText reads the legacy timedtext XML format where start and dur are seconds.
func parseTimedText(body string) []Segment {
	matches := reXMLTranscript.FindAllStringSubmatch(body, -1)
	segments := make([]Segment, 0, len(matches))
	for _, match := range matches {
		offset, _ := strconv.ParseFloat(match[1], 64)
		duration, _ := strconv.ParseFloat(match[2], 64)
		segments = append(segments, Segment{
			Text:       html.UnescapeString(html.UnescapeString(match[3])),
			OffsetMs:   int(math.Round(offset * 1000)),
			DurationMs: int(math.Round(duration * 1000)),
		})
	}
	return segments
}
