package resolve

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	tokenPattern          = regexp.MustCompile(`[\p{L}\p{N}]+`)
	bracketPattern        = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\{[^}]*\}|【[^】]*】`)
	separatorPattern      = regexp.MustCompile(`[._]+`)
	seasonEpisodePattern  = regexp.MustCompile(`(?i)\bs\s*(\d{1,2})\s*e\s*(\d{1,4})`)
	seasonXEpisodePattern = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`)
	seasonPattern         = regexp.MustCompile(`(?i)\b(?:season|s)\s*(\d{1,2})\b`)
	episodePattern        = regexp.MustCompile(`(?i)\b(?:episode|ep|e)\s*(\d{1,4})(?:v\d)?\b`)
	dashEpisodePattern    = regexp.MustCompile(`\s-\s*(\d{1,4})(?:v\d)?\b`)
	versionedPattern      = regexp.MustCompile(`^(\d{1,4})v\d$`)
)

var videoExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".m4v": {}, ".mov": {}, ".webm": {},
	".wmv": {}, ".flv": {}, ".ts": {}, ".m2ts": {}, ".mpg": {}, ".mpeg": {}, ".ogm": {},
}

var stopwordTokens = map[string]struct{}{
	"1080p": {}, "2160p": {}, "720p": {}, "480p": {}, "4k": {},
	"x264": {}, "h264": {}, "x265": {}, "h265": {}, "hevc": {}, "av1": {}, "10bit": {}, "8bit": {},
	"hdr": {}, "hdr10": {}, "webrip": {}, "web": {}, "webdl": {}, "dl": {},
	"bluray": {}, "bdrip": {}, "bd": {}, "dvdrip": {}, "hdtv": {}, "remux": {},
	"aac": {}, "ac3": {}, "eac3": {}, "dts": {}, "flac": {}, "opus": {},
	"multi": {}, "dual": {}, "audio": {}, "sub": {}, "subs": {}, "dub": {},
	"proper": {}, "repack": {}, "batch": {}, "complete": {},
	"season": {}, "episode": {}, "ep": {}, "the": {}, "a": {}, "of": {},
}

// fileMeta is what the scorer knows about one filename.
type fileMeta struct {
	tokens  map[string]struct{}
	season  int
	episode int
}

func foldString(input string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, input)
	if err != nil {
		return input
	}
	return folded
}

// cleanName lowercases and folds a path's base name, dropping the extension,
// bracketed release tags and dot/underscore separators.
func cleanName(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.ToLower(foldString(base))
	base = bracketPattern.ReplaceAllString(base, " ")
	base = separatorPattern.ReplaceAllString(base, " ")
	return strings.Join(strings.Fields(base), " ")
}

func isVideoFile(p string) bool {
	_, ok := videoExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

func parseFileMeta(p string) fileMeta {
	name := cleanName(p)
	meta := fileMeta{tokens: make(map[string]struct{})}
	meta.season, meta.episode = extractSeasonEpisode(name)
	for _, token := range titleTokens(name) {
		meta.tokens[token] = struct{}{}
	}
	return meta
}

func extractSeasonEpisode(input string) (int, int) {
	if match := seasonEpisodePattern.FindStringSubmatch(input); len(match) >= 3 {
		return parseIntOrZero(match[1]), parseIntOrZero(match[2])
	}
	if match := seasonXEpisodePattern.FindStringSubmatch(input); len(match) >= 3 {
		return parseIntOrZero(match[1]), parseIntOrZero(match[2])
	}

	season := 0
	if match := seasonPattern.FindStringSubmatch(input); len(match) >= 2 {
		season = parseIntOrZero(match[1])
	}
	if match := episodePattern.FindStringSubmatch(input); len(match) >= 2 {
		return season, parseIntOrZero(match[1])
	}
	if match := dashEpisodePattern.FindStringSubmatch(input); len(match) >= 2 {
		return season, parseIntOrZero(match[1])
	}
	return season, bareEpisodeNumber(input)
}

// bareEpisodeNumber returns the last standalone number that does not look
// like a year, a resolution or a season marker.
func bareEpisodeNumber(input string) int {
	tokens := tokenPattern.FindAllString(input, -1)
	for i := len(tokens) - 1; i >= 0; i-- {
		token := tokens[i]
		if m := versionedPattern.FindStringSubmatch(token); len(m) == 2 {
			token = m[1]
		}
		if isResolutionToken(token) || len(token) > 4 {
			continue
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			continue
		}
		if len(token) == 4 && n >= 1900 && n <= 2099 {
			continue
		}
		return n
	}
	return 0
}

// titleTokens are the words of a name that can identify the show.
func titleTokens(input string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, token := range tokenPattern.FindAllString(strings.ToLower(foldString(input)), -1) {
		if _, ok := stopwordTokens[token]; ok {
			continue
		}
		if isResolutionToken(token) || isNumeric(token) {
			continue
		}
		if seasonEpisodePattern.MatchString(token) || seasonXEpisodePattern.MatchString(token) {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

func parseIntOrZero(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func isNumeric(token string) bool {
	_, err := strconv.Atoi(token)
	return err == nil
}

func isResolutionToken(token string) bool {
	if len(token) < 3 || len(token) > 5 {
		return false
	}
	if !strings.HasSuffix(token, "p") {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSuffix(token, "p"))
	return err == nil
}
