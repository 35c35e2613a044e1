package cookies

import (
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func writeNetscape(t *testing.T, content string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/cookies.txt", []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return fsys
}

func TestParseNetscape(t *testing.T) {
	future := time.Now().Add(24 * time.Hour).Unix()
	past := time.Now().Add(-24 * time.Hour).Unix()
	content := "# Netscape HTTP Cookie File\n" +
		"# comment\n" +
		fmt.Sprintf("#HttpOnly_.in2p3.fr\tTRUE\t/\tTRUE\t%d\tsid\tfresh\n", future) +
		fmt.Sprintf("km3netdbweb.in2p3.fr\tFALSE\t/\tFALSE\t%d\tsid\tstale\n", past) +
		"km3netdbweb.in2p3.fr\tTRUE\t/\tTRUE\t0\tsid\tsession\n" +
		"other.org\tTRUE\t/\tTRUE\t0\tsid\tforeign\n" +
		"broken line without tabs\n" +
		"km3netdbweb.in2p3.fr\tTRUE\t/\tTRUE\tsoon\tsid\tbadexpiry\n"
	fsys := writeNetscape(t, content)

	got, err := ParseNetscape(fsys, "/cookies.txt", "km3netdbweb.in2p3.fr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// .in2p3.fr does not match: it is a parent, not the domain or a subdomain.
	if len(got) != 1 {
		t.Fatalf("expected 1 cookie, got %d: %+v", len(got), got)
	}
	if got[0].Value != "session" || !got[0].Secure {
		t.Errorf("unexpected cookie: %+v", got[0])
	}

	got, err = ParseNetscape(fsys, "/cookies.txt", "in2p3.fr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected parent domain to match 2 cookies, got %d", len(got))
	}
	if !got[0].HttpOnly {
		t.Error("expected #HttpOnly_ prefix to set HttpOnly")
	}
}

func TestParseNetscapeMissingFile(t *testing.T) {
	if _, err := ParseNetscape(afero.NewMemMapFs(), "/nope", "example.com"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMatchesDomain(t *testing.T) {
	tests := []struct {
		cookie, domain string
		want           bool
	}{
		{"example.com", "example.com", true},
		{".example.com", "example.com", true},
		{"db.example.com", "example.com", true},
		{"badexample.com", "example.com", false},
		{"example.org", "example.com", false},
	}
	for _, tt := range tests {
		if got := matchesDomain(tt.cookie, tt.domain); got != tt.want {
			t.Errorf("matchesDomain(%q, %q) = %v; want %v", tt.cookie, tt.domain, got, tt.want)
		}
	}
}
