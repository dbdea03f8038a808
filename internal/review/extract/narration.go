package extract

import (
	"math"
	"strings"
)

// VideoSampleEvery is the spacing between sampled video frames, in seconds.
const VideoSampleEvery = 3

// SampleOffsets returns frame offsets 0, every, 2*every, ... strictly below
// the whole-second duration.
func SampleOffsets(durationSec float64, every int) []int {
	if every <= 0 {
		every = VideoSampleEvery
	}
	limit := int(math.Floor(durationSec))
	var out []int
	for ts := 0; ts < limit; ts += every {
		out = append(out, ts)
	}
	return out
}

// SplitNarration partitions the words of text across units. Every unit gets
// max(1, words/units) words in order; trailing units may be empty.
func SplitNarration(text string, units int) []string {
	if units <= 0 {
		return nil
	}
	out := make([]string, units)
	words := strings.Fields(text)
	if len(words) == 0 {
		return out
	}
	chunk := max(1, len(words)/units)
	for i := range out {
		start := i * chunk
		if start >= len(words) {
			break
		}
		end := min(start+chunk, len(words))
		out[i] = strings.Join(words[start:end], " ")
	}
	return out
}
