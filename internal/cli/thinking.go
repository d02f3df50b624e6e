// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "strings"

// thinkingFilter incrementally strips <think>/<thought> blocks from streamed
// text. Deltas arrive at arbitrary split points, so a tag may straddle two
// writes; the filter holds back any trailing fragment that could still grow
// into a tag and releases it once it is disambiguated.
type thinkingFilter struct {
	buf      strings.Builder
	inHidden bool
	closeTag string
}

var openTags = []string{"<think>", "<thought>"}

// closeFor maps an opening tag to its closing tag.
func closeFor(open string) string {
	return "</" + open[1:]
}

// Write feeds one delta through the filter and returns the visible portion.
func (f *thinkingFilter) Write(delta string) string {
	f.buf.WriteString(delta)
	text := f.buf.String()
	f.buf.Reset()

	var out strings.Builder
	for text != "" {
		if f.inHidden {
			idx := strings.Index(text, f.closeTag)
			if idx < 0 {
				// Keep a tail that could be a partial closing tag.
				keep := partialTagStart(text, f.closeTag)
				f.buf.WriteString(text[keep:])
				return out.String()
			}
			text = text[idx+len(f.closeTag):]
			f.inHidden = false
			continue
		}

		idx, tag := nextOpenTag(text)
		if idx < 0 {
			// Hold back a trailing fragment that could open a tag.
			keep := len(text)
			for _, open := range openTags {
				if k := partialTagStart(text, open); k < keep {
					keep = k
				}
			}
			out.WriteString(text[:keep])
			f.buf.WriteString(text[keep:])
			return out.String()
		}
		out.WriteString(text[:idx])
		text = text[idx+len(tag):]
		f.inHidden = true
		f.closeTag = closeFor(tag)
	}
	return out.String()
}

// Flush returns any held-back text. Content inside an unterminated block
// stays hidden.
func (f *thinkingFilter) Flush() string {
	held := f.buf.String()
	f.buf.Reset()
	if f.inHidden {
		return ""
	}
	return held
}

// nextOpenTag finds the earliest opening tag in text.
func nextOpenTag(text string) (int, string) {
	best, bestTag := -1, ""
	for _, tag := range openTags {
		if idx := strings.Index(text, tag); idx >= 0 && (best < 0 || idx < best) {
			best, bestTag = idx, tag
		}
	}
	return best, bestTag
}

// partialTagStart returns the offset where a trailing prefix of tag begins,
// or len(text) when the text cannot end mid-tag.
func partialTagStart(text, tag string) int {
	max := len(tag) - 1
	if max > len(text) {
		max = len(text)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(text, tag[:n]) {
			return len(text) - n
		}
	}
	return len(text)
}
