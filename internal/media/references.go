package media

import (
	"regexp"
	"sort"

	"docquizai/internal/models"
)

const (
	// The URL may hold one level of balanced parentheses, as in Wikipedia links.
	RE_IMAGE       = `!\[[^\]]*\]\((https?://(?:[^()\s]|\([^()\s]*\))+)(?:\s+"[^"]*")?\)`
	RE_VIDEO_TAG   = `(?i)<youtube\s+videoId=['"]([^'"]+)['"](?:\s+start=['"]([^'"]*)['"])?(?:\s+end=['"]([^'"]*)['"])?[^>]*?/>`
	RE_YOUTUBE_URL = `(?:https?://)?(?:www\.|m\.)?(?:youtube\.com/(?:watch\?v=|embed/|shorts/)|youtu\.be/)[a-zA-Z0-9_-]{11}(?:[?&#][^\s)\]>"']*)?`
)

var (
	reImage     = regexp.MustCompile(RE_IMAGE)
	reVideoTag  = regexp.MustCompile(RE_VIDEO_TAG)
	reVideoLink = regexp.MustCompile(`\[[^\]]*\]\((` + RE_YOUTUBE_URL + `)\)`)
	reVideoURL  = regexp.MustCompile(RE_YOUTUBE_URL)
)

// reference is one media occurrence in the source text, [start, end) in bytes.
type reference struct {
	start, end int
	kind       models.MediaKind
	target     string // image URL, video URL or video id
	from, to   string // custom tag timestamps
}

// findReferences locates every media reference in one pass over text.
// Overlapping matches keep the one that starts first (the longest on a tie).
func findReferences(text string) []reference {
	var refs []reference

	for _, m := range reImage.FindAllStringSubmatchIndex(text, -1) {
		refs = append(refs, reference{start: m[0], end: m[1], kind: models.MediaImage, target: text[m[2]:m[3]]})
	}
	for _, m := range reVideoTag.FindAllStringSubmatchIndex(text, -1) {
		ref := reference{start: m[0], end: m[1], kind: models.MediaVideoSegment, target: text[m[2]:m[3]]}
		if m[4] >= 0 {
			ref.from = text[m[4]:m[5]]
		}
		if m[6] >= 0 {
			ref.to = text[m[6]:m[7]]
		}
		refs = append(refs, ref)
	}
	for _, m := range reVideoLink.FindAllStringSubmatchIndex(text, -1) {
		refs = append(refs, reference{start: m[0], end: m[1], kind: models.MediaVideo, target: text[m[2]:m[3]]})
	}
	for _, m := range reVideoURL.FindAllStringIndex(text, -1) {
		refs = append(refs, reference{start: m[0], end: m[1], kind: models.MediaVideo, target: text[m[0]:m[1]]})
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].start != refs[j].start {
			return refs[i].start < refs[j].start
		}
		return refs[i].end > refs[j].end
	})

	out := refs[:0]
	last := -1
	for _, ref := range refs {
		if ref.start < last {
			continue
		}
		out = append(out, ref)
		last = ref.end
	}
	return out
}
