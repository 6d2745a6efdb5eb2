// Package media replaces image and YouTube references inside Markdown with text
// derived from them, so the content survives conversion to plain text.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"docquizai/internal/logger"
	"docquizai/internal/models"
	"docquizai/internal/youtube"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const maxImageBytes = 20 << 20

// TextModel generates free text from a prompt.
type TextModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Captioner describes the image stored at path.
type Captioner interface {
	DescribeImage(ctx context.Context, path, mimeType, prompt string) (string, error)
}

// Transcripts fetches the captions of a video.
type Transcripts interface {
	FetchTranscript(ctx context.Context, videoID, lang string) ([]youtube.Segment, error)
}

type Options struct {
	Concurrency          int
	TranscriptCharBudget int
	TranscriptLang       string
	ScratchDir           string
	HTTPClient           *http.Client
}

// Resolver substitutes media references. It never fails: a reference that cannot be
// resolved is replaced by fallback text.
type Resolver struct {
	model       TextModel
	captioner   Captioner
	transcripts Transcripts
	opts        Options
	log         *logger.Logger
}

func NewResolver(model TextModel, captioner Captioner, transcripts Transcripts, opts Options, log *logger.Logger) *Resolver {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.TranscriptCharBudget <= 0 {
		opts.TranscriptCharBudget = 25000
	}
	if opts.TranscriptLang == "" {
		opts.TranscriptLang = "en"
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Resolver{
		model:       model,
		captioner:   captioner,
		transcripts: transcripts,
		opts:        opts,
		log:         log.With("component", "media"),
	}
}

// Resolve returns md with every image and YouTube reference replaced in place, plus one
// outcome per reference in document order.
func (r *Resolver) Resolve(ctx context.Context, md string) (string, []models.MediaOutcome) {
	refs := findReferences(md)
	if len(refs) == 0 {
		return md, nil
	}

	replacements := make([]string, len(refs))
	outcomes := make([]models.MediaOutcome, len(refs))

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			start := time.Now()
			defer func() {
				if p := recover(); p != nil {
					r.log.Error("media resolution panicked", "kind", ref.kind, "ref", ref.target, "panic", p)
					replacements[i] = fallback(ref)
					outcomes[i] = models.MediaOutcome{
						Kind:      ref.kind,
						Ref:       ref.target,
						Status:    models.OutcomeFailed,
						Reason:    fmt.Sprintf("panic: %v", p),
						ElapsedMs: time.Since(start).Milliseconds(),
					}
				}
			}()
			replacements[i], outcomes[i] = r.resolveOne(ctx, ref)
			outcomes[i].ElapsedMs = time.Since(start).Milliseconds()
			return nil
		})
	}
	_ = g.Wait()

	var b strings.Builder
	b.Grow(len(md))
	last := 0
	for i, ref := range refs {
		b.WriteString(md[last:ref.start])
		b.WriteString(replacements[i])
		last = ref.end
	}
	b.WriteString(md[last:])
	return b.String(), outcomes
}

func (r *Resolver) resolveOne(ctx context.Context, ref reference) (string, models.MediaOutcome) {
	switch ref.kind {
	case models.MediaImage:
		return r.resolveImage(ctx, ref)
	case models.MediaVideoSegment:
		return r.resolveSegment(ctx, ref)
	default:
		return r.resolveVideo(ctx, ref)
	}
}

// fallback is the text that stands in for ref when it cannot be resolved.
func fallback(ref reference) string {
	switch ref.kind {
	case models.MediaImage:
		return "image to text: " + imageFallback
	case models.MediaVideoSegment:
		return segmentLabel(ref) + videoFallback
	default:
		return "Video TextBook: " + videoFallback
	}
}

func segmentLabel(ref reference) string {
	return fmt.Sprintf("Video summary (%s to %s): ", orDefault(ref.from, "start"), orDefault(ref.to, "end"))
}

func (r *Resolver) resolveImage(ctx context.Context, ref reference) (string, models.MediaOutcome) {
	outcome := models.MediaOutcome{Kind: models.MediaImage, Ref: ref.target}
	fail := func(err error) (string, models.MediaOutcome) {
		r.log.Warn("image not resolved", "url", ref.target, "error", err)
		outcome.Status = models.OutcomeFailed
		outcome.Reason = err.Error()
		return fallback(ref), outcome
	}

	start := time.Now()
	scratch, err := r.download(ctx, ref.target)
	if err != nil {
		return fail(fmt.Errorf("download: %w", err))
	}
	defer func() {
		if err := os.Remove(scratch); err != nil && !os.IsNotExist(err) {
			r.log.Warn("failed to remove scratch image", "path", scratch, "error", err)
		}
	}()
	r.log.Debug("image downloaded", "url", ref.target, "elapsed", time.Since(start))

	start = time.Now()
	caption, err := r.captioner.DescribeImage(ctx, scratch, imageMIMEType(ref.target), imagePrompt)
	if err != nil {
		return fail(fmt.Errorf("caption: %w", err))
	}
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return fail(fmt.Errorf("caption: empty response"))
	}
	r.log.Debug("image captioned", "url", ref.target, "elapsed", time.Since(start))

	outcome.Status = models.OutcomeSuccess
	return "image to text: " + caption, outcome
}

func (r *Resolver) resolveVideo(ctx context.Context, ref reference) (string, models.MediaOutcome) {
	outcome := models.MediaOutcome{Kind: models.MediaVideo, Ref: ref.target}
	fail := func(err error) (string, models.MediaOutcome) {
		r.log.Warn("video not resolved", "url", ref.target, "error", err)
		outcome.Status = models.OutcomeFailed
		outcome.Reason = err.Error()
		return fallback(ref), outcome
	}

	videoID, err := youtube.ExtractVideoID(ref.target)
	if err != nil {
		return fail(err)
	}

	var prompt string
	transcript, err := r.transcript(ctx, videoID, youtube.Window{})
	if err != nil || transcript == "" {
		outcome.Reason = "no transcript"
		if err != nil {
			outcome.Reason = "no transcript: " + err.Error()
		}
		prompt = noTranscriptPrompt(videoID, youtube.WatchURL(videoID))
	} else {
		prompt = transcriptPrompt(videoID, truncate(transcript, r.opts.TranscriptCharBudget))
	}

	summary, err := r.summarize(ctx, videoID, prompt)
	if err != nil {
		return fail(err)
	}
	outcome.Status = models.OutcomeSuccess
	return "Video TextBook: " + summary, outcome
}

func (r *Resolver) resolveSegment(ctx context.Context, ref reference) (string, models.MediaOutcome) {
	outcome := models.MediaOutcome{Kind: models.MediaVideoSegment, Ref: ref.target}
	from, to := orDefault(ref.from, "start"), orDefault(ref.to, "end")
	label := segmentLabel(ref)
	fail := func(err error) (string, models.MediaOutcome) {
		r.log.Warn("video segment not resolved", "video_id", ref.target, "start", ref.from, "end", ref.to, "error", err)
		outcome.Status = models.OutcomeFailed
		outcome.Reason = err.Error()
		return fallback(ref), outcome
	}

	videoID, err := youtube.ExtractVideoID(ref.target)
	if err != nil {
		return fail(err)
	}
	window, err := youtube.NewWindow(ref.from, ref.to)
	if err != nil {
		return fail(err)
	}

	var prompt string
	transcript, err := r.transcript(ctx, videoID, window)
	if err != nil || transcript == "" {
		outcome.Reason = "no transcript"
		if err != nil {
			outcome.Reason = "no transcript: " + err.Error()
		}
		prompt = noSegmentTranscriptPrompt(videoID, from, to)
	} else {
		prompt = segmentPrompt(videoID, from, to, truncate(transcript, r.opts.TranscriptCharBudget))
	}

	summary, err := r.summarize(ctx, videoID, prompt)
	if err != nil {
		return fail(err)
	}
	outcome.Status = models.OutcomeSuccess
	return label + summary, outcome
}

// transcript returns the caption text inside window. An open window returns the full video.
func (r *Resolver) transcript(ctx context.Context, videoID string, window youtube.Window) (string, error) {
	start := time.Now()
	segments, err := r.transcripts.FetchTranscript(ctx, videoID, r.opts.TranscriptLang)
	if err != nil {
		return "", err
	}
	r.log.Debug("transcript fetched", "video_id", videoID, "segments", len(segments), "elapsed", time.Since(start))
	return youtube.JoinText(window.Filter(segments)), nil
}

func (r *Resolver) summarize(ctx context.Context, videoID, prompt string) (string, error) {
	start := time.Now()
	summary, err := r.model.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("summary: empty response")
	}
	r.log.Debug("video summarized", "video_id", videoID, "elapsed", time.Since(start))
	return summary, nil
}

// download writes the image at rawURL to a scratch file and returns its path.
func (r *Resolver) download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	name := uuid.New().String() + "_" + path.Base(urlPath(rawURL))
	scratch := filepath.Join(r.opts.ScratchDir, name)
	f, err := os.Create(scratch)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, maxImageBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxImageBytes {
		err = fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	if err != nil {
		os.Remove(scratch)
		return "", err
	}
	return scratch, nil
}

// imageMIMEType infers the upload type from the URL path. Unknown extensions are sent as JPEG.
func imageMIMEType(rawURL string) string {
	switch strings.ToLower(path.Ext(urlPath(rawURL))) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "image"
	}
	return u.Path
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
