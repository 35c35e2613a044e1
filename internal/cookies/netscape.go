package cookies

import (
	"bufio"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ParseNetscape reads cookies for the given domain from a Netscape-format
// cookie file. Lines starting with # are skipped, except #HttpOnly_ which sets
// the HttpOnly flag. Malformed lines are skipped with a warning.
// An expiry of 0 marks a session cookie and is never treated as expired.
func ParseNetscape(fsys afero.Fs, path string, domain string) ([]Cookie, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open Netscape cookie file: %w", err)
	}
	defer f.Close()

	now := time.Now()
	var cookies []Cookie

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			httpOnly = true
			line = line[len("#HttpOnly_"):]
		} else if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			log.Printf("warning: skipping malformed Netscape cookie line")
			continue
		}
		expiry, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			log.Printf("warning: skipping cookie with invalid expiry: %q", fields[4])
			continue
		}
		if !matchesDomain(fields[0], domain) {
			continue
		}
		if expiry > 0 && time.Unix(expiry, 0).Before(now) {
			continue
		}

		cookies = append(cookies, Cookie{
			Name:     fields[5],
			Value:    fields[6],
			Domain:   fields[0],
			Path:     fields[2],
			Expiry:   time.Unix(expiry, 0),
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HttpOnly: httpOnly,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read Netscape cookie file: %w", err)
	}
	return cookies, nil
}

// matchesDomain accepts an exact match, a dot-prefixed match or a subdomain.
func matchesDomain(cookieDomain, domain string) bool {
	dotDomain := "." + domain
	return cookieDomain == domain ||
		cookieDomain == dotDomain ||
		strings.HasSuffix(cookieDomain, dotDomain)
}
