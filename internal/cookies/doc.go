// Package cookies reads and writes the km3db cookie file and imports a
// database session cookie from a browser cookie store.
//
// The cookie file holds a single Netscape-format record:
//
//	<domain>\tTRUE\t/\tTRUE\t0\tsid\t<credential>
//
// Readers only rely on the last whitespace-delimited token, so any file that
// ends with the credential is accepted. Cookie values are never logged.
package cookies
