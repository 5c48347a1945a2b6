package layout

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownLocale is returned when no marker set exists for a locale.
var ErrUnknownLocale = errors.New("unknown locale")

// Markers holds the interface strings of one feed locale.
type Markers struct {
	Locale string `yaml:"locale" json:"locale"`
	// CommentsBoundary is a regular expression matched against the full
	// trimmed text of the "N comments" line below the post.
	CommentsBoundary string `yaml:"comments_boundary" json:"comments_boundary"`
	// Follow is removed from the author line.
	Follow string `yaml:"follow" json:"follow"`
	// Reply is contained in the reply button closing each comment.
	Reply string `yaml:"reply" json:"reply"`
	// MostRelevant is contained in the sort selector above the first comment.
	MostRelevant string `yaml:"most_relevant" json:"most_relevant"`
	// ReplyCount is contained in the "N replies" footer of a previous comment.
	ReplyCount string `yaml:"reply_count" json:"reply_count"`
	// Chrome lists the footer buttons stripped from a comment's date line.
	Chrome []string `yaml:"chrome" json:"chrome"`
}

// Validate checks that every marker is present and the boundary compiles.
func (m Markers) Validate() error {
	missing := []string{}
	for name, v := range map[string]string{
		"comments_boundary": m.CommentsBoundary,
		"reply":             m.Reply,
		"most_relevant":     m.MostRelevant,
		"reply_count":       m.ReplyCount,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("locale %q: missing markers: %s", m.Locale, strings.Join(missing, ", "))
	}
	if _, err := regexp.Compile(m.CommentsBoundary); err != nil {
		return fmt.Errorf("locale %q: invalid comments_boundary: %w", m.Locale, err)
	}
	return nil
}

var builtin = map[string]Markers{
	"nl": {
		Locale:           "nl",
		CommentsBoundary: `^\d+ opmerkingen$`,
		Follow:           "Volgen",
		Reply:            "beantwoorden",
		MostRelevant:     "meest relevant",
		ReplyCount:       "antwoord",
		Chrome:           []string{"leuk", "beantwoorden", "bewerkt"},
	},
	"en": {
		Locale:           "en",
		CommentsBoundary: `^\d+ comments?$`,
		Follow:           "Follow",
		Reply:            "reply",
		MostRelevant:     "most relevant",
		ReplyCount:       "replies",
		Chrome:           []string{"like", "reply", "edited"},
	},
}

// Locales returns the sorted names of the built-in marker sets.
func Locales() []string {
	out := make([]string, 0, len(builtin))
	for k := range builtin {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarkersFor returns the built-in marker set for locale.
func MarkersFor(locale string) (Markers, error) {
	m, ok := builtin[strings.ToLower(locale)]
	if !ok {
		return Markers{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownLocale, locale, strings.Join(Locales(), ", "))
	}
	m.Chrome = append([]string(nil), m.Chrome...)
	return m, nil
}

type markersFile struct {
	Locales []Markers `yaml:"locales"`
}

// LoadMarkers reads additional marker sets from a YAML file of the form
//
//	locales:
//	  - locale: de
//	    comments_boundary: '^\d+ Kommentare$'
//	    ...
func LoadMarkers(path string) (map[string]Markers, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: markers file path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read markers file: %w", err)
	}
	return ParseMarkers(data)
}

// ParseMarkers decodes and validates marker sets from YAML.
func ParseMarkers(data []byte) (map[string]Markers, error) {
	var f markersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse markers: %w", err)
	}
	out := make(map[string]Markers, len(f.Locales))
	for _, m := range f.Locales {
		if m.Locale == "" {
			return nil, errors.New("markers entry without locale")
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		out[strings.ToLower(m.Locale)] = m
	}
	return out, nil
}

// ResolveMarkers picks locale from the markers file if given, else from the built-in sets.
func ResolveMarkers(locale, markersFile string) (Markers, error) {
	if markersFile != "" {
		sets, err := LoadMarkers(markersFile)
		if err != nil {
			return Markers{}, err
		}
		if m, ok := sets[strings.ToLower(locale)]; ok {
			return m, nil
		}
	}
	return MarkersFor(locale)
}
