package ws

import "testing"

func TestItemIDFromChannel(t *testing.T) {
	cases := []struct {
		channel string
		want    string
	}{
		{"sale_events:abc-123", "abc-123"},
		{"sale_events:", ""},
		{"other:abc", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := itemIDFromChannel(tc.channel); got != tc.want {
			t.Errorf("itemIDFromChannel(%q): want=%q got=%q", tc.channel, tc.want, got)
		}
	}
}
