package km3db

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/km3py/km3db/common"
	"github.com/km3py/km3db/pkg/logger"
	"github.com/spf13/afero"
)

// fakeSource hands out credentials in order and counts calls.
type fakeSource struct {
	creds    []Credential
	err      error
	resolves int
	forgets  int
}

func (f *fakeSource) Resolve(context.Context) (Credential, error) {
	f.resolves++
	if f.err != nil {
		return "", f.err
	}
	c := f.creds[0]
	if len(f.creds) > 1 {
		f.creds = f.creds[1:]
	}
	return c, nil
}

func (f *fakeSource) Forget() error {
	f.forgets++
	return nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// waits records backoff durations and returns immediately.
type waits struct {
	d []time.Duration
}

func (w *waits) after(d time.Duration) <-chan time.Time {
	w.d = append(w.d, d)
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func testRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, AuthDelay: time.Second, NetworkDelay: 30 * time.Second}
}

func newTestClient(t *testing.T, base string, src CredentialSource, rt http.RoundTripper) (*Client, *waits, *logger.MockLogger) {
	t.Helper()
	log := logger.NewMockLogger()
	c, err := NewClient(&Options{
		BaseURL:     base,
		Credentials: src,
		Retry:       testRetry(),
		Transport:   rt,
		Logger:      log,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	w := &waits{}
	c.after = w.after
	return c, w, log
}

func textResponse(r *http.Request, code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Status:     http.StatusText(code),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}
}

func TestGetSendsSessionCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sid")
		if err != nil || c.Value != string(testCredential) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c, _, _ := newTestClient(t, srv.URL, &fakeSource{creds: []Credential{testCredential}}, srv.Client().Transport)
	if got := c.Get(context.Background(), "streamds"); got != "hello" {
		t.Errorf("Get = %q, want hello", got)
	}
}

func TestGetEndToEnd(t *testing.T) {
	var seen *http.Request
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return textResponse(r, http.StatusOK, "OID\tNAME\n1\tfoo\n"), nil
	})
	c, _, _ := newTestClient(t, "https://example.test", &fakeSource{creds: []Credential{testCredential}}, rt)

	got := c.Get(context.Background(), "streamds/detectors.txt?")
	if got != "OID\tNAME\n1\tfoo\n" {
		t.Errorf("Get = %q", got)
	}
	if seen == nil {
		t.Fatal("no request made")
	}
	if seen.URL.Host != "example.test" || seen.URL.Path != "/streamds/detectors.txt" {
		t.Errorf("requested %s", seen.URL)
	}
	if cookie := seen.Header.Get("Cookie"); cookie != "sid="+string(testCredential) {
		t.Errorf("Cookie header = %q", cookie)
	}
}

func TestTarget(t *testing.T) {
	c, _, _ := newTestClient(t, "https://example.test/", &fakeSource{}, nil)
	tests := map[string]string{
		"streamds":                       "https://example.test/streamds",
		"/streamds":                      "https://example.test/streamds",
		"streamds/runs.txt%3Fdetid%3DD1": "https://example.test/streamds/runs.txt?detid=D1",
		"streamds/detectors.txt?":        "https://example.test/streamds/detectors.txt?",
		"bad%zzescape":                   "https://example.test/bad%zzescape",
		"streamds/runs.txt?detid=a b":    "https://example.test/streamds/runs.txt?detid=a%20b",
		"streamds/runs.txt?detid=a%20b":  "https://example.test/streamds/runs.txt?detid=a%20b",
	}
	for path, want := range tests {
		if got := c.Target(path); got != want {
			t.Errorf("Target(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestGetResolvesOnce(t *testing.T) {
	var requests int
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		requests++
		return textResponse(r, http.StatusOK, "ok"), nil
	})
	src := &fakeSource{creds: []Credential{testCredential}}
	c, _, _ := newTestClient(t, "https://example.test", src, rt)

	for i := 0; i < 3; i++ {
		c.Get(context.Background(), "streamds")
	}
	if src.resolves != 1 {
		t.Errorf("Resolve called %d times, want 1", src.resolves)
	}
	if requests != 3 {
		t.Errorf("%d requests, want 3", requests)
	}
}

func TestGetForbiddenGivesUp(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, testCookiePath, []byte(testCredential), 0600); err != nil {
		t.Fatal(err)
	}
	resolver := NewResolver(&ResolverOptions{
		BaseURL:      srv.URL,
		Fs:           fsys,
		CookiePath:   testCookiePath,
		TrustedHosts: []TrustedHost{},
		Getenv:       envMap(map[string]string{common.CookieEnv: otherCredential}),
	})
	c, w, log := newTestClient(t, srv.URL, resolver, srv.Client().Transport)

	got := c.Get(context.Background(), "streamds", WithDefault("fallback"))
	if got != "fallback" {
		t.Errorf("Get = %q, want fallback", got)
	}
	if requests != 3 {
		t.Errorf("%d requests, want 3", requests)
	}
	if ok, _ := afero.Exists(fsys, testCookiePath); ok {
		t.Error("cookie file not removed after 403")
	}
	if len(w.d) != 2 || w.d[0] != time.Second || w.d[1] != time.Second {
		t.Errorf("waits = %v, want [1s 1s]", w.d)
	}
	if len(log.ErrorCalls) != 1 || !strings.Contains(log.ErrorCalls[0], "giving up") {
		t.Errorf("error log = %q", log.ErrorCalls)
	}
}

func TestGetForbiddenThenOK(t *testing.T) {
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get("Cookie") == "sid="+string(testCredential) {
			return textResponse(r, http.StatusForbidden, ""), nil
		}
		return textResponse(r, http.StatusOK, "fresh"), nil
	})
	src := &fakeSource{creds: []Credential{testCredential, otherCredential}}
	c, _, _ := newTestClient(t, "https://example.test", src, rt)

	if got := c.Get(context.Background(), "streamds"); got != "fresh" {
		t.Errorf("Get = %q, want fresh", got)
	}
	if src.resolves != 2 || src.forgets != 1 {
		t.Errorf("resolves=%d forgets=%d, want 2 and 1", src.resolves, src.forgets)
	}
}

func TestNewClientDefaultRetry(t *testing.T) {
	var requests int
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		requests++
		if requests == 1 {
			return textResponse(r, http.StatusForbidden, ""), nil
		}
		return textResponse(r, http.StatusOK, "ok"), nil
	})
	c, err := NewClient(&Options{
		BaseURL:     "https://example.test",
		Credentials: &fakeSource{creds: []Credential{testCredential, otherCredential}},
		Transport:   rt,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	w := &waits{}
	c.after = w.after

	if c.retry != DefaultRetryConfig() {
		t.Errorf("retry = %+v, want %+v", c.retry, DefaultRetryConfig())
	}
	if got := c.Get(context.Background(), "streamds"); got != "ok" {
		t.Errorf("Get = %q, want ok", got)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
	if len(w.d) != 1 || w.d[0] != common.DefaultAuthDelay {
		t.Errorf("waits = %v, want one %v", w.d, common.DefaultAuthDelay)
	}
}

func TestGetWithMaxRetriesZero(t *testing.T) {
	var requests int
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		requests++
		return textResponse(r, http.StatusForbidden, ""), nil
	})
	c, w, _ := newTestClient(t, "https://example.test", &fakeSource{creds: []Credential{testCredential}}, rt)

	if got := c.Get(context.Background(), "streamds", WithMaxRetries(0)); got != "" {
		t.Errorf("Get = %q, want empty default", got)
	}
	if requests != 1 || len(w.d) != 0 {
		t.Errorf("requests=%d waits=%v, want a single attempt", requests, w.d)
	}
}

func TestGetNetworkRetry(t *testing.T) {
	var requests int
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		requests++
		if requests < 3 {
			return nil, syscall.ECONNRESET
		}
		return textResponse(r, http.StatusOK, "recovered"), nil
	})
	src := &fakeSource{creds: []Credential{testCredential}}
	c, w, _ := newTestClient(t, "https://example.test", src, rt)

	if got := c.Get(context.Background(), "streamds"); got != "recovered" {
		t.Errorf("Get = %q, want recovered", got)
	}
	if len(w.d) != 2 || w.d[0] != 30*time.Second || w.d[1] != 30*time.Second {
		t.Errorf("waits = %v, want [30s 30s]", w.d)
	}
	if src.resolves != 1 || src.forgets != 0 {
		t.Errorf("network retries must keep the session: resolves=%d forgets=%d", src.resolves, src.forgets)
	}
}

func TestGetNetworkGivesUp(t *testing.T) {
	var requests int
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		requests++
		return nil, errors.New("connection refused")
	})
	c, _, _ := newTestClient(t, "https://example.test", &fakeSource{creds: []Credential{testCredential}}, rt)

	if got := c.Get(context.Background(), "streamds", WithDefault("none")); got != "none" {
		t.Errorf("Get = %q, want none", got)
	}
	if requests != 3 {
		t.Errorf("%d requests, want 3", requests)
	}
}

// truncatedBody yields data and then fails with io.ErrUnexpectedEOF.
type truncatedBody struct {
	r *bytes.Reader
}

func (b *truncatedBody) Read(p []byte) (int, error) {
	if b.r.Len() == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	return b.r.Read(p)
}

func (b *truncatedBody) Close() error { return nil }

func TestGetTruncated(t *testing.T) {
	var requests int
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		requests++
		resp := textResponse(r, http.StatusOK, "")
		resp.Body = &truncatedBody{r: bytes.NewReader([]byte("OID\tNA"))}
		return resp, nil
	})
	c, w, log := newTestClient(t, "https://example.test", &fakeSource{creds: []Credential{testCredential}}, rt)

	if got := c.Get(context.Background(), "streamds", WithDefault("x")); got != "OID\tNA" {
		t.Errorf("Get = %q, want the partial body", got)
	}
	if requests != 1 || len(w.d) != 0 {
		t.Errorf("requests=%d waits=%v, truncation must not retry", requests, w.d)
	}
	if len(log.WarningCalls) == 0 {
		t.Error("expected a warning about the incomplete read")
	}
}

func TestGetOtherStatus(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusUnauthorized} {
		var requests int
		rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
			requests++
			return textResponse(r, code, "nope"), nil
		})
		c, w, _ := newTestClient(t, "https://example.test", &fakeSource{creds: []Credential{testCredential}}, rt)

		if got := c.Get(context.Background(), "streamds", WithDefault("d")); got != "d" {
			t.Errorf("%d: Get = %q, want default", code, got)
		}
		if requests != 1 || len(w.d) != 0 {
			t.Errorf("%d: requests=%d waits=%v", code, requests, w.d)
		}
	}
}

func TestGetResolveFailure(t *testing.T) {
	var requests int
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		requests++
		return textResponse(r, http.StatusOK, "ok"), nil
	})
	src := &fakeSource{err: ErrAuthentication}
	c, _, log := newTestClient(t, "https://example.test", src, rt)

	if got := c.Get(context.Background(), "streamds", WithDefault("d")); got != "d" {
		t.Errorf("Get = %q, want default", got)
	}
	if requests != 0 {
		t.Errorf("%d requests without a credential", requests)
	}
	if len(log.ErrorCalls) != 1 {
		t.Errorf("error log = %q", log.ErrorCalls)
	}
}

func TestGetCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, io.EOF
	})
	c, _, _ := newTestClient(t, "https://example.test", &fakeSource{creds: []Credential{testCredential}}, rt)
	c.after = func(time.Duration) <-chan time.Time {
		cancel()
		return nil
	}

	if got := c.Get(ctx, "streamds", WithDefault("d")); got != "d" {
		t.Errorf("Get = %q, want default", got)
	}
}

func TestGetInvalidUTF8(t *testing.T) {
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return textResponse(r, http.StatusOK, "a\xffb"), nil
	})
	c, _, _ := newTestClient(t, "https://example.test", &fakeSource{creds: []Credential{testCredential}}, rt)

	if got := c.Get(context.Background(), "streamds"); got != "a\uFFFDb" {
		t.Errorf("Get = %q", got)
	}
	body, ok := c.GetBytes(context.Background(), "streamds")
	if !ok || !bytes.Equal(body, []byte("a\xffb")) {
		t.Errorf("GetBytes = %q, %v", body, ok)
	}
}

func TestInsecureSkipVerify(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secure"))
	}))
	defer srv.Close()

	for _, insecure := range []bool{true, false} {
		c, err := NewClient(&Options{
			BaseURL:            srv.URL,
			Credentials:        &fakeSource{creds: []Credential{testCredential}},
			InsecureSkipVerify: insecure,
		})
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		got := c.Get(context.Background(), "streamds", WithMaxRetries(0))
		if insecure && got != "secure" {
			t.Errorf("insecure Get = %q, want secure", got)
		}
		if !insecure && got != "" {
			t.Errorf("verifying Get = %q, want a failed handshake", got)
		}
	}
}

func TestNewClientBaseURL(t *testing.T) {
	for _, base := range []string{"://bad", "example.test"} {
		if _, err := NewClient(&Options{BaseURL: base, Credentials: &fakeSource{}}); err == nil {
			t.Errorf("NewClient(%q) succeeded", base)
		}
	}
	c, err := NewClient(&Options{Credentials: &fakeSource{}})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.BaseURL() != common.DefaultBaseURL {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
}
