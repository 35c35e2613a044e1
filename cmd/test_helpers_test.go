package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/km3py/km3db/common"
	"github.com/km3py/km3db/pkg/credman"
	"github.com/km3py/km3db/pkg/km3db"
)

const (
	testSID       = "_tgal_127.0.0.1_a5cf8d1c24e54ac2b5d2b2d1b5d55b2b"
	testSIDClassB = "_tgal_127.0_a5cf8d1c24e54ac2b5d2b2d1b5d55b2b"
	testDetectors = "OID\tNAME\n1\tfoo\n"
)

const testListing = "STREAM\tFORMATS\tMANDATORY_SELECTORS\tOPTIONAL_SELECTORS\tDESCRIPTION\n" +
	"detectors\ttxt\t-\tOID\tDetector list\n" +
	"runs\ttxt\tdetid\tminrun,maxrun\tRuns of a detector\n"

// memStore is an in-memory keyring replacement.
type memStore struct {
	value   string
	deleted bool
}

func (m *memStore) Name() string { return "memory" }

func (m *memStore) Load() (string, error) {
	if m.value == "" {
		return "", credman.ErrNotFound
	}
	return m.value, nil
}

func (m *memStore) Save(v string) error {
	m.value = v
	return nil
}

func (m *memStore) Delete() error {
	m.value = ""
	m.deleted = true
	return nil
}

type testEnv struct {
	dir        string
	cookieFile string
	sid        string // issued by the login page and required by every other page
	keyring    *memStore
	requests   []string
}

// setupTest starts a fake database and points the environment at it. The
// server only answers requests carrying te.sid, testSID unless changed.
func setupTest(t *testing.T) *testEnv {
	t.Helper()
	te := &testEnv{dir: t.TempDir(), sid: testSID, keyring: &memStore{}}
	te.cookieFile = filepath.Join(te.dir, "cookie")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		te.requests = append(te.requests, r.URL.RequestURI())
		if r.URL.Path == "/home.htm" {
			q := r.URL.Query()
			if q.Get("usr") == "alice" && q.Get("pwd") == "pw" {
				w.Write([]byte("sid=" + te.sid))
				return
			}
			w.Write([]byte("Bad username or password"))
			return
		}
		if c, err := r.Cookie("sid"); err != nil || c.Value != te.sid {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/streamds":
			w.Write([]byte(testListing))
		case "/streamds/detectors.txt":
			w.Write([]byte(testDetectors))
		case "/streamds/runs.txt":
			w.Write([]byte("RUN\tDETID\n7\t" + r.URL.Query().Get("detid") + "\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	t.Setenv("HOME", te.dir)
	t.Setenv(common.URLEnv, srv.URL)
	t.Setenv(common.CookieFileEnv, te.cookieFile)
	t.Setenv(common.ConfigEnv, "")
	t.Setenv(common.CookieEnv, "")
	t.Setenv(common.UsernameEnv, "")
	t.Setenv(common.PasswordEnv, "")
	t.Setenv(common.KeyringEnv, "")
	t.Setenv(common.MaxRetriesEnv, "0")
	t.Setenv(common.AuthDelayEnv, "1ms")
	t.Setenv(common.NetworkDelayEnv, "1ms")

	origHosts, origPrompter, origKeyring := trustedHosts, newPrompter, newKeyring
	trustedHosts = func() []km3db.TrustedHost { return []km3db.TrustedHost{} }
	newPrompter = func() km3db.CredentialPrompter { return nil }
	newKeyring = func() credman.Store { return te.keyring }
	t.Cleanup(func() {
		trustedHosts, newPrompter, newKeyring = origHosts, origPrompter, origKeyring
	})
	return te
}

// runApp runs the CLI with args and returns what it printed.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp(BuildArgs{Version: "1.0.0", BuildType: "test"})
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"km3db"}, args...))
	if errOut.Len() > 0 {
		t.Logf("stderr:\n%s", errOut.String())
	}
	return out.String(), err
}

// assertContains checks if output contains the expected substring.
// It reports a test failure with the actual output if the substring is not found.
func assertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}
