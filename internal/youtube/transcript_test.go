package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"docquizai/internal/logger"
)

func newScraperClient(srv *httptest.Server) *Client {
	return &Client{
		http:     srv.Client(),
		watchURL: srv.URL + "/watch?v=%s",
		log:      logger.Nop(),
	}
}

func TestFetchTranscriptFromWatchPage(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><script>var x = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%s/timedtext?lang=de","languageCode":"de"},{"baseUrl":"%s/timedtext?lang=en","languageCode":"en"}]}},"videoDetails":{}};</script></html>`, srv.URL, srv.URL)
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lang") != "en" {
			t.Errorf("expected english track, got %q", r.URL.Query().Get("lang"))
		}
		fmt.Fprint(w, `<?xml version="1.0"?><transcript><text start="0.5" dur="1.2">Hello &amp;amp; welcome</text><text start="1.7" dur="2">to the course</text></transcript>`)
	})

	c := newScraperClient(srv)
	segments, err := c.FetchTranscript(context.Background(), "dQw4w9WgXcQ", "en")
	if err != nil {
		t.Fatalf("FetchTranscript: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "Hello & welcome" {
		t.Fatalf("expected unescaped text, got %q", segments[0].Text)
	}
	if segments[0].OffsetMs != 500 || segments[0].DurationMs != 1200 {
		t.Fatalf("unexpected timing %+v", segments[0])
	}
	if segments[1].OffsetMs != 1700 || segments[1].DurationMs != 2000 {
		t.Fatalf("unexpected timing %+v", segments[1])
	}
}

func TestFetchTranscriptNoCaptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>no captions here</html>`)
	}))
	defer srv.Close()

	_, err := newScraperClient(srv).FetchTranscript(context.Background(), "dQw4w9WgXcQ", "en")
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestFetchTranscriptMissingLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"http://unused","languageCode":"fr"}]}},"videoDetails":{}}`)
	}))
	defer srv.Close()

	_, err := newScraperClient(srv).FetchTranscript(context.Background(), "dQw4w9WgXcQ", "en")
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestFetchTranscriptHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newScraperClient(srv).FetchTranscript(context.Background(), "dQw4w9WgXcQ", "en")
	if err == nil || errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
