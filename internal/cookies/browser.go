package cookies

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteMagic is the first 16 bytes of any SQLite database file.
var sqliteMagic = []byte("SQLite format 3\x00")

// chromeEpochOffsetSeconds separates the Windows NT epoch from the Unix epoch.
const chromeEpochOffsetSeconds int64 = 11_644_473_600

// ErrUnsupportedStore is returned for files that are neither a known SQLite
// cookie database nor a Netscape cookie file.
var ErrUnsupportedStore = errors.New("unsupported cookie store")

// DetectFormat determines the cookie store format of the file at path.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("cannot open cookie store: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return FormatUnknown, fmt.Errorf("cannot read cookie store %s: %w", path, err)
	}
	head = head[:n]

	if bytes.HasPrefix(head, sqliteMagic) {
		return detectSQLiteFormat(path)
	}

	first, _, _ := strings.Cut(string(head), "\n")
	first = strings.TrimRight(first, "\r")
	if first == "# Netscape HTTP Cookie File" || first == "# HTTP Cookie File" {
		return FormatNetscape, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedStore, path)
}

func detectSQLiteFormat(path string) (Format, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return FormatUnknown, fmt.Errorf("cannot open SQLite database: %w", err)
	}
	defer db.Close()

	var name string
	q := `SELECT name FROM sqlite_master WHERE type='table' AND name=?`
	if db.QueryRow(q, "moz_cookies").Scan(&name) == nil {
		return FormatFirefox, nil
	}
	if db.QueryRow(q, "cookies").Scan(&name) == nil {
		return FormatChrome, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedStore, path)
}

// sqliteQueries maps a browser schema to a query returning
// name, value, host, path, expiry (unix seconds), secure, httponly
// for a given (domain, .domain, %.domain, cookie name, now).
var sqliteQueries = map[Format]string{
	FormatFirefox: `
        SELECT name, value, host, path, expiry, isSecure, isHttpOnly
        FROM moz_cookies
        WHERE (host = ? OR host = ? OR host LIKE ?)
          AND name = ?
          AND (expiry = 0 OR expiry > ?)
        ORDER BY expiry DESC`,
	FormatChrome: `
        SELECT name, value, host_key, path,
               CASE WHEN expires_utc = 0 THEN 0
                    ELSE expires_utc / 1000000 - 11644473600 END,
               is_secure, is_httponly
        FROM cookies
        WHERE (host_key = ? OR host_key = ? OR host_key LIKE ?)
          AND name = ?
          AND value != ''
          AND (expires_utc = 0 OR expires_utc / 1000000 - 11644473600 > ?)
        ORDER BY expires_utc DESC`,
}

// readSQLite returns the cookies called name for domain from a copied
// browser database.
func readSQLite(dbPath string, format Format, domain, name string) ([]Cookie, error) {
	query, ok := sqliteQueries[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStore, format)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?immutable=1", dbPath))
	if err != nil {
		return nil, fmt.Errorf("cannot open %s cookie database: %w", format, err)
	}
	defer db.Close()

	rows, err := db.Query(query, domain, "."+domain, "%."+domain, name, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query %s cookies: %w", format, err)
	}
	defer rows.Close()

	var out []Cookie
	for rows.Next() {
		var (
			c              Cookie
			expiry         int64
			secure, httpOn int
		)
		if err := rows.Scan(&c.Name, &c.Value, &c.Domain, &c.Path, &expiry, &secure, &httpOn); err != nil {
			return nil, fmt.Errorf("failed to scan %s cookie row: %w", format, err)
		}
		c.Expiry = time.Unix(expiry, 0)
		c.Secure = secure != 0
		c.HttpOnly = httpOn != 0
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s cookie rows: %w", format, err)
	}
	return out, nil
}

// safeCopy copies a SQLite cookie file and its -wal and -shm companions to a
// temporary directory so the browser's lock is not contended. The caller must
// call cleanup.
func safeCopy(srcPath string) (copied string, cleanup func(), err error) {
	tempDir, err := os.MkdirTemp("", "km3db-cookies-*")
	if err != nil {
		return "", nil, fmt.Errorf("cannot create temp directory: %w", err)
	}
	cleanup = func() { os.RemoveAll(tempDir) }

	copied = filepath.Join(tempDir, filepath.Base(srcPath))
	if err := copyFile(srcPath, copied); err != nil {
		cleanup()
		return "", nil, err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if _, err := os.Stat(srcPath + suffix); err == nil {
			_ = copyFile(srcPath+suffix, copied+suffix)
		}
	}
	return copied, cleanup, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open source file %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("cannot create destination file %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("cannot copy file: %w", err)
	}
	return nil
}
