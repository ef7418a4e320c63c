// Package resolve picks which files of a torrent or debrid listing most
// likely hold the episode the user asked for.
package resolve

import (
	"strings"

	"torrentstream/playback/internal/domain"
)

// Target is the episode being looked for.
type Target struct {
	EpisodeNumber         int      `json:"episodeNumber"`
	AbsoluteEpisodeNumber int      `json:"absoluteEpisodeNumber,omitempty"`
	Season                int      `json:"season,omitempty"`
	Title                 string   `json:"title,omitempty"`
	Synonyms              []string `json:"synonyms,omitempty"`
}

type candidate struct {
	index        int
	episodeMatch bool
	overlap      float64
	length       int64
}

// MarkLikely returns a copy of files with IsLikely set on every candidate
// that matches the target episode. Zero, one or many files may be marked.
// When several files match the episode, only those sharing the most title
// words with the target are kept. A target without an episode number marks
// the largest video file.
func MarkLikely(files []domain.FilePreview, target Target) []domain.FilePreview {
	out := make([]domain.FilePreview, len(files))
	copy(out, files)
	for i := range out {
		out[i].IsLikely = false
	}

	titles := targetTitleTokens(target)
	var candidates []candidate
	for i, f := range out {
		p := f.Path
		if p == "" {
			p = f.DisplayPath
		}
		if !isVideoFile(p) {
			continue
		}
		meta := parseFileMeta(p)
		candidates = append(candidates, candidate{
			index:        i,
			episodeMatch: episodeMatches(meta, target),
			overlap:      titleOverlap(meta, titles),
			length:       f.Length,
		})
	}
	if len(candidates) == 0 {
		return out
	}

	if target.EpisodeNumber <= 0 && target.AbsoluteEpisodeNumber <= 0 {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.length > best.length {
				best = c
			}
		}
		out[best.index].IsLikely = true
		return out
	}

	var matched []candidate
	bestOverlap := 0.0
	for _, c := range candidates {
		if !c.episodeMatch {
			continue
		}
		matched = append(matched, c)
		if c.overlap > bestOverlap {
			bestOverlap = c.overlap
		}
	}
	for _, c := range matched {
		if bestOverlap > 0 && c.overlap < bestOverlap {
			continue
		}
		out[c.index].IsLikely = true
	}
	return out
}

func episodeMatches(meta fileMeta, target Target) bool {
	if meta.episode <= 0 {
		return false
	}
	if target.AbsoluteEpisodeNumber > 0 && meta.episode == target.AbsoluteEpisodeNumber {
		return true
	}
	if meta.episode != target.EpisodeNumber {
		return false
	}
	if target.Season > 0 && meta.season > 0 && meta.season != target.Season {
		return false
	}
	return true
}

func targetTitleTokens(target Target) [][]string {
	var out [][]string
	for _, title := range append([]string{target.Title}, target.Synonyms...) {
		if strings.TrimSpace(title) == "" {
			continue
		}
		if tokens := titleTokens(title); len(tokens) > 0 {
			out = append(out, tokens)
		}
	}
	return out
}

// titleOverlap is the best share of any title's words found in the file name.
func titleOverlap(meta fileMeta, titles [][]string) float64 {
	best := 0.0
	for _, tokens := range titles {
		hits := 0
		for _, token := range tokens {
			if _, ok := meta.tokens[token]; ok {
				hits++
			}
		}
		if share := float64(hits) / float64(len(tokens)); share > best {
			best = share
		}
	}
	return best
}

func HasOneLikelyMatch(files []domain.FilePreview) bool {
	_, ok := LikelyIndex(files)
	return ok
}

// LikelyIndex returns the position of the only likely file.
func LikelyIndex(files []domain.FilePreview) (int, bool) {
	found := -1
	for i, f := range files {
		if !f.IsLikely {
			continue
		}
		if found >= 0 {
			return -1, false
		}
		found = i
	}
	return found, found >= 0
}

func HasLikelyMatch(files []domain.FilePreview) bool {
	for _, f := range files {
		if f.IsLikely {
			return true
		}
	}
	return false
}
