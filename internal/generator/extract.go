package generator

import "strings"

const fenceMarker = "```"

type fenceState int

const (
	outsideFence fenceState = iota
	insideTaggedFence
	insideUntaggedFence
)

// fence is one occurrence of the fence marker. tag is the info string that
// directly follows it, if any.
type fence struct {
	start int
	end   int // first byte after the marker and its tag
	tag   string
}

// ExtractCode returns the code inside the first fence tagged lang, or the
// text between the first two fence markers, or raw unchanged when there is
// no usable fence. An opened lang fence with no closing marker also returns raw.
func ExtractCode(raw, lang string) string {
	fences := scanFences(raw)
	if len(fences) == 0 {
		return raw
	}

	state := outsideFence
	var open fence
	for _, f := range fences {
		switch state {
		case outsideFence:
			if lang != "" && strings.EqualFold(f.tag, lang) {
				state, open = insideTaggedFence, f
			}
		case insideTaggedFence:
			return strings.TrimSpace(raw[open.end:f.start])
		}
	}
	if state == insideTaggedFence {
		return raw
	}

	for _, f := range fences {
		switch state {
		case outsideFence:
			state, open = insideUntaggedFence, f
		case insideUntaggedFence:
			return strings.TrimSpace(raw[open.start+len(fenceMarker) : f.start])
		}
	}
	return raw
}

func scanFences(text string) []fence {
	var out []fence
	for i := 0; i < len(text); {
		idx := strings.Index(text[i:], fenceMarker)
		if idx < 0 {
			break
		}
		start := i + idx
		end := start + len(fenceMarker)
		tagEnd := end
		for tagEnd < len(text) && isTagByte(text[tagEnd]) {
			tagEnd++
		}
		out = append(out, fence{start: start, end: tagEnd, tag: text[end:tagEnd]})
		i = end
	}
	return out
}

func isTagByte(c byte) bool {
	return c == '_' || c == '-' || c == '+' || c == '#' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

