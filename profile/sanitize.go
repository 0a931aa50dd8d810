package profile

import (
	"html"
	"slices"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Field length caps, in runes.
const (
	MaxEmailLen        = 254
	MaxFullNameLen     = 100
	MaxBusinessNameLen = 100
	MaxIndustryLen     = 50
	MaxTeamSizeLen     = 20
	MaxRevenueRangeLen = 50
	MaxBioLen          = 1000
	MaxTools           = 20
	MaxToolLen         = 50
	MaxSettings        = 50
	MaxSettingKeyLen   = 64
	MaxSettingValueLen = 256
)

// Sanitizer strips markup and control characters from profile text and caps
// its length. Entities are decoded until none remain, so sanitizing the
// output again leaves it unchanged.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer returns a [Sanitizer] using bluemonday's strict policy.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Text sanitizes a single-line value and truncates it to max runes.
func (s *Sanitizer) Text(v string, max int) string {
	return s.clean(v, max, false)
}

// Multiline is Text but keeps line breaks.
func (s *Sanitizer) Multiline(v string, max int) string {
	return s.clean(v, max, true)
}

// maxDecodePasses bounds how many entity layers clean peels off.
const maxDecodePasses = 8

func (s *Sanitizer) clean(v string, max int, keepNewlines bool) string {
	if v == "" {
		return ""
	}
	// Unescaping can expose new markup or entities, so strip until the text
	// stops changing.
	for range maxDecodePasses {
		next := s.strip(v, keepNewlines)
		if next == v {
			break
		}
		v = next
	}
	v = strings.TrimSpace(v)
	if max > 0 && utf8.RuneCountInString(v) > max {
		v = strings.TrimSpace(string([]rune(v)[:max]))
	}
	return v
}

func (s *Sanitizer) strip(v string, keepNewlines bool) string {
	if strings.ContainsAny(v, "<>&") {
		v = html.UnescapeString(s.policy.Sanitize(v))
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '<' || r == '>':
			return -1
		case r == '\n' && keepNewlines:
			return r
		case r == '\t' || r == '\n' || r == '\r':
			return ' '
		case unicode.IsControl(r) || r == utf8.RuneError:
			return -1
		}
		return r
	}, v)
}

// Fields sanitizes every attribute of f.
func (s *Sanitizer) Fields(f Fields) Fields {
	return Fields{
		Email:        s.Text(f.Email, MaxEmailLen),
		FullName:     s.Text(f.FullName, MaxFullNameLen),
		BusinessName: s.Text(f.BusinessName, MaxBusinessNameLen),
		Industry:     s.Text(f.Industry, MaxIndustryLen),
		TeamSize:     s.Text(f.TeamSize, MaxTeamSizeLen),
		RevenueRange: s.Text(f.RevenueRange, MaxRevenueRangeLen),
		Bio:          s.Multiline(f.Bio, MaxBioLen),
		Tools:        s.Tools(f.Tools),
		Settings:     s.Settings(f.Settings),
	}
}

// Patch sanitizes every attribute the patch sets.
func (s *Sanitizer) Patch(p Patch) Patch {
	text := func(v *string, max int) *string {
		if v == nil {
			return nil
		}
		out := s.Text(*v, max)
		return &out
	}
	out := Patch{
		FullName:     text(p.FullName, MaxFullNameLen),
		BusinessName: text(p.BusinessName, MaxBusinessNameLen),
		Industry:     text(p.Industry, MaxIndustryLen),
		TeamSize:     text(p.TeamSize, MaxTeamSizeLen),
		RevenueRange: text(p.RevenueRange, MaxRevenueRangeLen),
	}
	if p.Bio != nil {
		bio := s.Multiline(*p.Bio, MaxBioLen)
		out.Bio = &bio
	}
	if p.Tools != nil {
		tools := s.Tools(*p.Tools)
		if tools == nil {
			tools = []string{}
		}
		out.Tools = &tools
	}
	if p.Settings != nil {
		out.Settings = s.Settings(p.Settings)
		if out.Settings == nil {
			out.Settings = map[string]string{}
		}
	}
	return out
}

// Tools sanitizes tool names, drops blanks and duplicates and keeps at most
// MaxTools entries in input order.
func (s *Sanitizer) Tools(tools []string) []string {
	var out []string
	for _, tool := range tools {
		clean := s.Text(tool, MaxToolLen)
		if clean == "" || slices.Contains(out, clean) {
			continue
		}
		out = append(out, clean)
		if len(out) == MaxTools {
			break
		}
	}
	return out
}

// Settings sanitizes keys and values, drops blank keys and keeps at most
// MaxSettings entries chosen by key order.
func (s *Sanitizer) Settings(settings map[string]string) map[string]string {
	if len(settings) == 0 {
		return nil
	}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, min(len(keys), MaxSettings))
	for _, k := range keys {
		clean := s.Text(k, MaxSettingKeyLen)
		if clean == "" {
			continue
		}
		if _, dup := out[clean]; dup {
			continue
		}
		out[clean] = s.Text(settings[k], MaxSettingValueLen)
		if len(out) == MaxSettings {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
