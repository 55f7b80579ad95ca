package post

import "testing"

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		wantErr bool
	}{
		{"valid", Draft{Title: "t", Body: "b"}, false},
		{"empty title", Draft{Title: "", Body: "b"}, true},
		{"whitespace title", Draft{Title: "   ", Body: "b"}, true},
		{"empty body", Draft{Title: "t", Body: ""}, true},
		{"whitespace body", Draft{Title: "t", Body: "\n\t"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBodyLines(t *testing.T) {
	d := Draft{Body: "first\r\nsecond\n\nfourth"}
	lines := d.BodyLines()
	want := []string{"first", "second", "", "fourth"}
	if len(lines) != len(want) {
		t.Fatalf("BodyLines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}
