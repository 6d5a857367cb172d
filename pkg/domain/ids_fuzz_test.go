package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseActorID checks that parsing never panics on arbitrary input and
// always returns either a usable ID or an error, never both.
func FuzzParseActorID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE course_instances;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseActorID(input)

		if err == nil {
			if id.IsNil() {
				t.Errorf("ParseActorID(%q) returned nil id without error", input)
			}
			if !utf8.ValidString(id.String()) {
				t.Errorf("ParseActorID(%q) produced invalid string form", input)
			}
		} else if !id.IsNil() {
			t.Errorf("ParseActorID(%q) returned both id and error", input)
		}
	})
}

// FuzzParseCalendarDate checks the date boundary never panics and accepted
// values round-trip through String.
func FuzzParseCalendarDate(f *testing.F) {
	f.Add("2025-06-01")
	f.Add("2024-02-29")
	f.Add("2025-02-29")
	f.Add("junk")
	f.Add("")
	f.Add("2025-13-01")
	f.Add("0001-01-01")

	f.Fuzz(func(t *testing.T, input string) {
		date, err := ParseCalendarDate(input)
		if err != nil {
			return
		}
		parsed, err := ParseCalendarDate(date.String())
		if err != nil {
			t.Errorf("ParseCalendarDate(%q).String() = %q does not re-parse: %v", input, date.String(), err)
		}
		if parsed != date {
			t.Errorf("ParseCalendarDate(%q) round trip changed the value", input)
		}
	})
}
