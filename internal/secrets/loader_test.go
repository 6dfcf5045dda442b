package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	full := filepath.Join(dir, "token")
	if err := os.WriteFile(full, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HH_OUTREACH_TEST_SECRET", " from-env ")

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr bool
	}{
		{name: "file beats value", src: Source{File: full, Value: "inline"}, want: "from-file"},
		{name: "inline", src: Source{Value: " inline "}, want: "inline"},
		{name: "env fallback", src: Source{Env: "HH_OUTREACH_TEST_SECRET"}, want: "from-env"},
		{name: "value beats env", src: Source{Value: "inline", Env: "HH_OUTREACH_TEST_SECRET"}, want: "inline"},
		{name: "missing", src: Source{Name: "smtp password"}, wantErr: true},
		{name: "optional missing", src: Source{Optional: true}, want: ""},
		{name: "empty file", src: Source{File: empty, Optional: true}, wantErr: true},
		{name: "unreadable file", src: Source{File: filepath.Join(dir, "nope")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
