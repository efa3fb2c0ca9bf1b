package chunking

import (
	"strings"

	"deckforge/internal/queue"
)

// Params captures every knob that shapes a chunk plan. The extractor records
// them next to the plan so a retried extraction reproduces identical chunks
// even if the live configuration changed in between.
type Params struct {
	ThresholdBytes int `json:"threshold_bytes"`
	TokenBudget    int `json:"token_budget"`
	HeadUnits      int `json:"head_units"`
	TailUnits      int `json:"tail_units"`
	BodySamples    int `json:"body_samples"`
	WindowBytes    int `json:"window_bytes"`
	FlatWindows    int `json:"flat_windows"`
}

type strategy interface {
	Name() string
	Plan(text string, params Params) []queue.Chunk
}

// strategies maps declared document formats to their sampling strategy.
// Formats without an entry are rejected as unsupported.
var strategies = map[string]strategy{
	"txt":      flatStrategy{},
	"md":       structuredStrategy{},
	"markdown": structuredStrategy{},
}

// SupportedFormats lists the formats a chunk plan can be built for.
func SupportedFormats() []string {
	formats := make([]string, 0, len(strategies))
	for format := range strategies {
		formats = append(formats, format)
	}
	return formats
}

// flatStrategy samples byte windows from unstructured text: one window from
// each end plus evenly spaced windows across the interior.
type flatStrategy struct{}

func (flatStrategy) Name() string { return "flat-window" }

func (flatStrategy) Plan(text string, params Params) []queue.Chunk {
	size := len(text)
	window := params.WindowBytes
	if window <= 0 || window*2 >= size {
		return []queue.Chunk{chunkAt(text, queue.RoleFull, 0, size)}
	}

	chunks := []queue.Chunk{chunkAt(text, queue.RoleIntroduction, 0, window)}

	interiorStart := window
	interiorEnd := size - window
	span := interiorEnd - interiorStart - window
	if params.FlatWindows > 0 && span > 0 {
		step := 1
		if params.FlatWindows > 1 {
			step = span / (params.FlatWindows - 1)
		}
		for i := 0; i < params.FlatWindows; i++ {
			start := interiorStart + i*step
			if params.FlatWindows == 1 {
				start = interiorStart + span/2
			}
			if start+window > interiorEnd {
				start = interiorEnd - window
			}
			chunks = append(chunks, chunkAt(text, queue.RoleBodySample, start, start+window))
		}
	}

	chunks = append(chunks, chunkAt(text, queue.RoleConclusion, interiorEnd, size))
	return chunks
}

// structuredStrategy samples heading-delimited sections: the first HeadUnits
// and last TailUnits sections bracket BodySamples evenly spaced sections
// drawn from the middle. Documents without headings fall back to flat
// window sampling.
type structuredStrategy struct{}

func (structuredStrategy) Name() string { return "structured-unit" }

func (structuredStrategy) Plan(text string, params Params) []queue.Chunk {
	units := splitUnits(text)
	if len(units) < 2 {
		return flatStrategy{}.Plan(text, params)
	}

	head := params.HeadUnits
	tail := params.TailUnits
	if head+tail >= len(units) {
		// Few enough sections that sampling would drop nothing; keep all.
		var chunks []queue.Chunk
		for i, u := range units {
			role := queue.RoleIntroduction
			if i == len(units)-1 {
				role = queue.RoleConclusion
			}
			chunks = append(chunks, chunkAt(text, role, u.start, u.end))
		}
		return chunks
	}

	var chunks []queue.Chunk
	for _, u := range units[:head] {
		chunks = append(chunks, chunkAt(text, queue.RoleIntroduction, u.start, u.end))
	}

	interior := units[head : len(units)-tail]
	for _, idx := range sampleIndices(len(interior), params.BodySamples) {
		u := interior[idx]
		chunks = append(chunks, chunkAt(text, queue.RoleBodySample, u.start, u.end))
	}

	for _, u := range units[len(units)-tail:] {
		chunks = append(chunks, chunkAt(text, queue.RoleConclusion, u.start, u.end))
	}
	return chunks
}

type unit struct {
	start int
	end   int
}

// splitUnits divides text into heading-delimited sections. A unit begins at
// each line starting with '#'; any preamble before the first heading forms
// its own unit.
func splitUnits(text string) []unit {
	var units []unit
	offset := 0
	current := -1
	for offset <= len(text) {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		var next int
		if lineEnd < 0 {
			next = len(text) + 1
		} else {
			next = offset + lineEnd + 1
		}
		line := text[offset:min(next-1, len(text))]
		if strings.HasPrefix(line, "#") {
			if current >= 0 {
				units = append(units, unit{start: current, end: offset})
			}
			current = offset
		} else if current < 0 && strings.TrimSpace(line) != "" {
			current = offset
		}
		offset = next
	}
	if current >= 0 && current < len(text) {
		units = append(units, unit{start: current, end: len(text)})
	}
	return units
}

// sampleIndices picks count evenly spaced indices from [0, n). Fewer than
// count available returns every index.
func sampleIndices(n, count int) []int {
	if n <= 0 || count <= 0 {
		return nil
	}
	if count >= n {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	indices := make([]int, 0, count)
	seen := make(map[int]struct{}, count)
	for i := 0; i < count; i++ {
		idx := n / 2
		if count > 1 {
			idx = i * (n - 1) / (count - 1)
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		indices = append(indices, idx)
	}
	return indices
}

func chunkAt(text string, role queue.ChunkRole, start, end int) queue.Chunk {
	start, end = snapToRuneBoundary(text, start, end)
	return queue.Chunk{
		Role:  role,
		Start: start,
		End:   end,
		Text:  text[start:end],
	}
}

// snapToRuneBoundary moves byte offsets off the middle of a UTF-8 sequence
// so window slices never split a rune.
func snapToRuneBoundary(text string, start, end int) (int, int) {
	for start > 0 && start < len(text) && isContinuationByte(text[start]) {
		start++
	}
	for end > start && end < len(text) && isContinuationByte(text[end]) {
		end--
	}
	return start, end
}

func isContinuationByte(b byte) bool {
	return b&0xC0 == 0x80
}
