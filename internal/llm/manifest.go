package llm

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/kdimtricp/cineman/internal/validation"
)

// manifest is the structured block the system prompt asks the model to
// append after its conversational reply.
type manifest struct {
	Movies []manifestMovie `json:"movies"`
}

type manifestMovie struct {
	Title    string   `json:"title"`
	Year     flexYear `json:"year"`
	Director string   `json:"director"`
}

// flexYear accepts the year as a JSON string or number; models emit both.
type flexYear string

func (y *flexYear) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*y = flexYear(s)
	return nil
}

// ExtractManifest splits a model reply into the conversational text and the
// trailing {"movies": [...]} JSON block. Fenced code blocks around the JSON
// are tolerated. A reply without a manifest is a plain conversational turn,
// not an error.
func ExtractManifest(text string) (reply string, candidates []validation.Candidate) {
	start := findManifestStart(text)
	if start < 0 {
		return strings.TrimSpace(text), nil
	}

	blob := text[start:]
	blob = strings.TrimSuffix(strings.TrimSpace(blob), "```")

	var m manifest
	if err := json.Unmarshal([]byte(strings.TrimSpace(blob)), &m); err != nil {
		// Try trimming trailing prose after the closing brace.
		if end := strings.LastIndex(blob, "}"); end >= 0 {
			if err := json.Unmarshal([]byte(blob[:end+1]), &m); err != nil {
				return strings.TrimSpace(text), nil
			}
		} else {
			return strings.TrimSpace(text), nil
		}
	}

	reply = text[:start]
	reply = strings.TrimSuffix(strings.TrimSpace(reply), "```json")
	reply = strings.TrimSuffix(strings.TrimSpace(reply), "```")
	reply = strings.TrimSpace(reply)

	for _, mm := range m.Movies {
		if strings.TrimSpace(mm.Title) == "" {
			continue
		}
		candidates = append(candidates, validation.Candidate{
			Title:    strings.TrimSpace(mm.Title),
			Year:     normalizeManifestYear(string(mm.Year)),
			Director: strings.TrimSpace(mm.Director),
		})
	}
	return reply, candidates
}

// findManifestStart locates the last '{' that opens an object containing a
// "movies" key.
func findManifestStart(text string) int {
	idx := strings.LastIndex(text, `"movies"`)
	if idx < 0 {
		return -1
	}
	for i := idx; i >= 0; i-- {
		if text[i] == '{' {
			return i
		}
	}
	return -1
}

func normalizeManifestYear(year string) string {
	year = strings.TrimSpace(year)
	if year == "" {
		return ""
	}
	if _, err := strconv.Atoi(year); err == nil && len(year) == 4 {
		return year
	}
	return validation.NormalizeYear(year)
}
