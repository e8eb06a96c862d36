package marker

import "testing"

func TestExtract(t *testing.T) {
	m := Marker{Start: "<<<S>>>", End: "<<<E>>>"}

	cases := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{
			name: "simple payload",
			text: "noise\n<<<S>>>\npayload line\n<<<E>>>\ntrailer",
			want: "payload line\n",
		},
		{
			name: "empty payload when markers coincide",
			text: "<<<S>>>\n<<<E>>>",
			want: "",
		},
		{
			name:    "missing start",
			text:    "nothing here",
			wantErr: true,
		},
		{
			name:    "missing end",
			text:    "<<<S>>>\nunterminated",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Extract(tc.text, m)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got payload %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
