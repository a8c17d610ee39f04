// Package fragment turns free-form reply text into render-ready pieces.
// A reply is first split into punctuation-bounded fragments (the
// conversational "typing beats"), and each fragment is then decomposed
// into typed segments so rich media renders as a whole element instead
// of being split mid-tag.
package fragment

import (
	"fmt"
	"regexp"
	"strings"
)

// Segment is one typed sub-part of a fragment.
type Segment struct {
	Type    string `json:"type"` // text, image, video, audio
	Content string `json:"content"`
}

// Fragment is a punctuation-bounded chunk of a reply, rendered as one
// visual bubble.
type Fragment struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

var (
	thoughtRe  = regexp.MustCompile(`(?is)<thoughtsignature>.*?</thoughtsignature>`)
	funcCallRe = regexp.MustCompile(`(?is)<functioncall>.*?</functioncall>`)
	funcRespRe = regexp.MustCompile(`(?is)<functionresponse>.*?</functionresponse>`)
	refRe      = regexp.MustCompile(`(?is)referencia:.*?(\n|$)`)
	lightRe    = regexp.MustCompile(`(?i)referencia:|mensagem:`)

	base64AudioRe = regexp.MustCompile(`^base64:\s*([A-Za-z0-9+/=]+)`)
	driveLinkRe   = regexp.MustCompile(`(?i)https://drive\.google\.com/file/d/([a-zA-Z0-9_-]+)(/view)?`)

	// punctuation/newline run followed by an optional emoji run
	boundaryRe = regexp.MustCompile(`[.!?\n]+(?:\s*[\x{1F300}-\x{1F9FF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}\x{1F000}-\x{1F02F}]+)*`)

	taggedRe = regexp.MustCompile(`(?is)<video[^>]*>.*?</video>|<audio[^>]*>.*?</audio>|<image[^>]*>.*?</image>|<template_de_resposta>.*?</template_de_resposta>`)
	tagKind  = regexp.MustCompile(`(?is)^<(video|audio|image|template_de_resposta)[^>]*>(.*)</[a-z_]+>$`)

	imageURLRe = regexp.MustCompile(`(?i)https?://\S+\.(?:png|jpg|jpeg|gif|webp|bmp|tiff)`)
	videoURLRe = regexp.MustCompile(`(?i)https?://\S+\.(?:mp4|webm|ogg|mov)`)
	audioURLRe = regexp.MustCompile(`(?i)https?://\S+\.(?:mp3|wav|mpeg|m4a|aac|oga)`)
	mediaURLRe = regexp.MustCompile(`(?i)https?://\S+\.(?:png|jpg|jpeg|gif|webp|bmp|tiff|mp4|webm|ogg|mov|mp3|wav|mpeg|m4a|aac|oga)`)
)

// Clean strips internal control markup: tool-call, thought-signature and
// tool-response blocks plus the trailing "referencia:" annotation. When
// stripping empties a short original, a lighter strip is retried before
// giving up to an empty result.
func Clean(text string) string {
	clean := thoughtRe.ReplaceAllString(text, "")
	clean = funcCallRe.ReplaceAllString(clean, "")
	clean = funcRespRe.ReplaceAllString(clean, "")
	clean = strings.TrimSpace(refRe.ReplaceAllString(clean, ""))
	if clean == "" && len(text) < 50 {
		clean = strings.TrimSpace(lightRe.ReplaceAllString(text, ""))
	}
	return clean
}

// Split cuts text into fragments at punctuation boundaries. Fragments
// accumulate two boundaries at a time, so a closing boundary only lands
// on every second punctuation run; any unterminated remainder becomes
// the final fragment. Text without boundaries is a single fragment.
func Split(text string) []string {
	if text == "" {
		return []string{text}
	}
	var parts []string
	cursor := 0
	count := 0
	for _, loc := range boundaryRe.FindAllStringIndex(text, -1) {
		count++
		if count%2 != 0 {
			continue
		}
		if piece := strings.TrimSpace(text[cursor:loc[1]]); piece != "" {
			parts = append(parts, piece)
		}
		cursor = loc[1]
	}
	if rest := strings.TrimSpace(text[cursor:]); rest != "" {
		parts = append(parts, rest)
	}
	if len(parts) == 0 {
		return []string{text}
	}
	return parts
}

// Segments decomposes one fragment into typed parts: explicit tagged
// media regions, template wrappers unwrapped into plain text, and bare
// media URLs promoted to rich elements.
func Segments(text string) []Segment {
	var out []Segment
	last := 0
	for _, loc := range taggedRe.FindAllStringIndex(text, -1) {
		if before := strings.TrimSpace(text[last:loc[0]]); before != "" {
			out = append(out, textSegments(before)...)
		}
		region := text[loc[0]:loc[1]]
		if m := tagKind.FindStringSubmatch(region); m != nil {
			kind := strings.ToLower(m[1])
			inner := strings.TrimSpace(m[2])
			if kind == "template_de_resposta" {
				out = append(out, textSegments(inner)...)
			} else {
				out = append(out, Segment{Type: kind, Content: inner})
			}
		}
		last = loc[1]
	}
	if after := strings.TrimSpace(text[last:]); after != "" {
		out = append(out, textSegments(after)...)
	}
	if len(out) == 0 {
		out = textSegments(text)
	}
	return out
}

// textSegments splits a plain-text run around bare media URLs, emitting
// a typed segment for each recognized link.
func textSegments(text string) []Segment {
	var out []Segment
	last := 0
	for _, loc := range mediaURLRe.FindAllStringIndex(text, -1) {
		if before := strings.TrimSpace(text[last:loc[0]]); before != "" {
			out = append(out, Segment{Type: "text", Content: before})
		}
		url := text[loc[0]:loc[1]]
		out = append(out, Segment{Type: mediaType(url), Content: url})
		last = loc[1]
	}
	if after := strings.TrimSpace(text[last:]); after != "" {
		out = append(out, Segment{Type: "text", Content: after})
	}
	if len(out) == 0 && strings.TrimSpace(text) != "" {
		out = append(out, Segment{Type: "text", Content: strings.TrimSpace(text)})
	}
	return out
}

func mediaType(url string) string {
	switch {
	case imageURLRe.MatchString(url):
		return "image"
	case videoURLRe.MatchString(url):
		return "video"
	case audioURLRe.MatchString(url):
		return "audio"
	default:
		return "text"
	}
}

// Render runs the full pipeline: strip control markup, short-circuit
// audio payloads and share links, then fragment and segment.
func Render(text string) []Fragment {
	clean := Clean(text)
	if clean == "" {
		return nil
	}

	// base64-encoded audio becomes a playable data URI
	if strings.HasPrefix(clean, "base64:") {
		if m := base64AudioRe.FindStringSubmatch(clean); m != nil {
			uri := "data:audio/webm;base64," + m[1]
			return []Fragment{{Text: clean, Segments: []Segment{{Type: "audio", Content: uri}}}}
		}
	}

	// cloud-storage share links are rewritten to direct downloads
	if m := driveLinkRe.FindStringSubmatch(clean); m != nil {
		url := fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", m[1])
		return []Fragment{{Text: clean, Segments: []Segment{{Type: "audio", Content: url}}}}
	}

	parts := Split(clean)
	out := make([]Fragment, 0, len(parts))
	for _, p := range parts {
		out = append(out, Fragment{Text: p, Segments: Segments(p)})
	}
	return out
}
