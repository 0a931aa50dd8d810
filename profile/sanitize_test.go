package profile_test

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/MrEthical07/goSession/profile"
	"github.com/stretchr/testify/assert"
)

func TestTextStripsMarkup(t *testing.T) {
	s := profile.NewSanitizer()

	cases := map[string]string{
		"<script>alert(1)</script>Acme":     "Acme",
		"  Acme <b>Corp</b>  ":               "Acme Corp",
		"Tom & Jerry":                        "Tom & Jerry",
		"O'Brien \"Ltd\"":                    "O'Brien \"Ltd\"",
		"&lt;img src=x onerror=alert(1)&gt;": "img src=x onerror=alert(1)",
		"line\nbreak\tand\x00nul":            "line break andnul",
		"":                                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, s.Text(in, 100), "input %q", in)
	}
}

func TestTextIsIdempotent(t *testing.T) {
	s := profile.NewSanitizer()
	inputs := []string{
		"<i>x</i> & y",
		"&amp;&amp;",
		"a < b > c",
		strings.Repeat("é", 150),
		"​ spaced \t",
		"Smith &amp;lt; Sons",
		"&amp;amp;amp;",
		"&l<b></b>t;script",
		"a&\x00lt;b",
	}
	for _, in := range inputs {
		once := s.Text(in, 100)
		assert.Equal(t, once, s.Text(once, 100), "input %q", in)
	}
}

func TestTextDecodesNestedEntities(t *testing.T) {
	s := profile.NewSanitizer()
	assert.Equal(t, "Smith  Sons", s.Text("Smith &amp;lt; Sons", 100))
	assert.Equal(t, "Tom & Jerry", s.Text("Tom &amp;amp; Jerry", 100))
}

func TestTextCapsRunes(t *testing.T) {
	s := profile.NewSanitizer()
	out := s.Text(strings.Repeat("ü", 300), profile.MaxBusinessNameLen)
	assert.Equal(t, profile.MaxBusinessNameLen, utf8.RuneCountInString(out))
}

func TestMultilineKeepsNewlines(t *testing.T) {
	s := profile.NewSanitizer()
	assert.Equal(t, "first\nsecond", s.Multiline(" first\nsecond ", profile.MaxBioLen))
}

func TestToolsDedupAndCap(t *testing.T) {
	s := profile.NewSanitizer()
	in := []string{"Slack", " slack", "Slack", "", "<b>Jira</b>"}
	for i := 0; i < 30; i++ {
		in = append(in, fmt.Sprintf("tool-%02d", i))
	}

	out := s.Tools(in)
	assert.Len(t, out, profile.MaxTools)
	assert.Equal(t, []string{"Slack", "slack", "Jira"}, out[:3])
}

func TestSettingsCapsKeysAndValues(t *testing.T) {
	s := profile.NewSanitizer()
	in := map[string]string{
		"   ":                   "dropped",
		"theme":                 "<em>dark</em>",
		strings.Repeat("k", 80): strings.Repeat("v", 300),
	}
	for i := 0; i < 60; i++ {
		in[fmt.Sprintf("z%02d", i)] = "x"
	}

	out := s.Settings(in)
	assert.Len(t, out, profile.MaxSettings)
	assert.Equal(t, "dark", out["theme"])
	assert.Equal(t, strings.Repeat("v", profile.MaxSettingValueLen), out[strings.Repeat("k", profile.MaxSettingKeyLen)])
	assert.NotContains(t, out, "")
}

func TestFieldsRoundTripThroughMetadata(t *testing.T) {
	f := profile.Fields{Email: "a@x.io", FullName: "Ada", BusinessName: "Acme", Industry: "Retail"}
	got := profile.FieldsFromMetadata(f.Email, f.Metadata())
	assert.Equal(t, f, got)
}
