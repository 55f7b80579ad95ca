package editor

import "testing"

func TestMatchDraftTitle(t *testing.T) {
	tests := []struct {
		name       string
		expected   string
		candidates []string
		wantMatch  string
		wantOK     bool
	}{
		{
			name:       "exact match",
			expected:   "제주도 여행 후기",
			candidates: []string{"다른 글", "제주도 여행 후기"},
			wantMatch:  "제주도 여행 후기",
			wantOK:     true,
		},
		{
			name:       "exact match after trim",
			expected:   "Morning Post",
			candidates: []string{"  Morning Post  "},
			wantMatch:  "  Morning Post  ",
			wantOK:     true,
		},
		{
			name:       "truncated list entry matches by prefix",
			expected:   "A very long travel story about the coast",
			candidates: []string{"A very long ...", "unrelated"},
			wantMatch:  "A very long ...",
			wantOK:     true,
		},
		{
			name:       "short title never prefix-matches",
			expected:   "hello",
			candidates: []string{"hello world extended"},
			wantOK:     false,
		},
		{
			name:       "no candidates",
			expected:   "anything at all here",
			candidates: nil,
			wantOK:     false,
		},
		{
			name:       "empty expected",
			expected:   "",
			candidates: []string{""},
			wantOK:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchDraftTitle(tt.expected, tt.candidates)
			if ok != tt.wantOK {
				t.Fatalf("MatchDraftTitle ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.wantMatch {
				t.Fatalf("MatchDraftTitle = %q, want %q", got, tt.wantMatch)
			}
		})
	}
}

func TestTitlePrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"short", "short"},
		{"exactly8c", "exactly8"},
		{"  padded title  ", "padded t"},
		{"한글제목은여덟자로자릅니다", "한글제목은여덟자"},
	}
	for _, tt := range tests {
		if got := titlePrefix(tt.in); got != tt.want {
			t.Fatalf("titlePrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
