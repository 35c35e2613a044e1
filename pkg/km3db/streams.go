package km3db

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/km3py/km3db/pkg/logger"
)

// DefaultFormat is the stream output format used when none is given.
const DefaultFormat = "txt"

// Fetcher is the part of Client that StreamDS needs.
type Fetcher interface {
	GetBytes(ctx context.Context, path string, opts ...GetOption) ([]byte, bool)
}

// Stream describes one tabular endpoint of the database.
type Stream struct {
	Name        string
	Formats     []string
	Mandatory   []string
	Optional    []string
	Description string

	query func(ctx context.Context, format string, selectors map[string]string) (string, error)
}

// Query fetches this stream. An empty format means DefaultFormat.
func (s *Stream) Query(ctx context.Context, format string, selectors map[string]string) (string, error) {
	return s.query(ctx, format, selectors)
}

// Help renders the stream's description, formats and selectors.
func (s *Stream) Help() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.Name)
	if s.Description != "" {
		fmt.Fprintf(&b, "%s\n", s.Description)
	}
	fmt.Fprintf(&b, "  available formats:   %s\n", JoinOrDash(s.Formats))
	fmt.Fprintf(&b, "  mandatory selectors: %s\n", JoinOrDash(s.Mandatory))
	fmt.Fprintf(&b, "  optional selectors:  %s\n", JoinOrDash(s.Optional))
	return b.String()
}

// JoinOrDash joins v with commas; an empty list renders as "-".
func JoinOrDash(v []string) string {
	if len(v) == 0 {
		return "-"
	}
	return strings.Join(v, ",")
}

// StreamDS gives access to the database streams.
type StreamDS struct {
	db      Fetcher
	log     logger.Logger
	streams map[string]*Stream
}

// NewStreamDS fetches the stream listing through db.
func NewStreamDS(ctx context.Context, db Fetcher, l logger.Logger) (*StreamDS, error) {
	if l == nil {
		l = logger.NewNopLogger()
	}
	s := &StreamDS{db: db, log: l}
	if err := s.Update(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Update reloads the stream listing.
func (s *StreamDS) Update(ctx context.Context) error {
	body, ok := s.db.GetBytes(ctx, "streamds")
	if !ok {
		return fmt.Errorf("%w: stream listing", ErrRequestFailed)
	}
	streams, err := parseStreams(string(body))
	if err != nil {
		return err
	}
	for _, st := range streams {
		name := st.Name
		st.query = func(ctx context.Context, format string, selectors map[string]string) (string, error) {
			return s.Query(ctx, name, format, selectors)
		}
	}
	s.streams = streams
	s.log.Debug("discovered %d streams", len(streams))
	return nil
}

func parseStreams(text string) (map[string]*Stream, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty stream listing", ErrEmptyResult)
	}
	t, err := ParseTable(text)
	if err != nil {
		return nil, fmt.Errorf("stream listing: %w", err)
	}
	col := func(row []string, name string) string {
		if i := t.Index(name); i >= 0 {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	if t.Index("STREAM") < 0 {
		return nil, fmt.Errorf("%w: stream listing has no STREAM column", ErrMalformedTable)
	}

	out := make(map[string]*Stream, len(t.Rows))
	for _, row := range t.Rows {
		st := &Stream{
			Name:        col(row, "STREAM"),
			Formats:     splitList(col(row, "FORMATS")),
			Mandatory:   splitList(col(row, "MANDATORY_SELECTORS")),
			Optional:    splitList(col(row, "OPTIONAL_SELECTORS")),
			Description: col(row, "DESCRIPTION"),
		}
		if st.Name == "" {
			continue
		}
		out[st.Name] = st
	}
	return out, nil
}

// splitList splits a comma list; "-" means none.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" || item == "-" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Streams returns the streams sorted by name.
func (s *StreamDS) Streams() []*Stream {
	out := make([]*Stream, 0, len(s.streams))
	for _, st := range s.streams {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stream returns the named stream.
func (s *StreamDS) Stream(name string) (*Stream, bool) {
	st, ok := s.streams[name]
	return st, ok
}

// Help renders the help of the named stream.
func (s *StreamDS) Help(name string) (string, error) {
	st, ok := s.streams[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrStreamNotFound, name)
	}
	return st.Help(), nil
}

// QueryPath returns streamds/<stream>.<format>?<k=v&...> with keys sorted.
// Values are not escaped.
func QueryPath(stream, format string, selectors map[string]string) string {
	keys := make([]string, 0, len(selectors))
	for k := range selectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + selectors[k]
	}
	return fmt.Sprintf("streamds/%s.%s?%s", stream, format, strings.Join(pairs, "&"))
}

// Query fetches a stream after checking its format and mandatory selectors.
func (s *StreamDS) Query(ctx context.Context, stream, format string, selectors map[string]string) (string, error) {
	st, ok := s.streams[stream]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrStreamNotFound, stream)
	}
	if format == "" {
		format = DefaultFormat
	}
	if len(st.Formats) > 0 && !slices.Contains(st.Formats, format) {
		return "", fmt.Errorf("%w: %s has %s, not %q", ErrUnknownFormat, stream, JoinOrDash(st.Formats), format)
	}
	for _, m := range st.Mandatory {
		if _, ok := selectors[m]; !ok {
			return "", fmt.Errorf("%w: %s needs %q", ErrMissingSelector, stream, m)
		}
	}

	path := QueryPath(stream, format, selectors)
	body, ok := s.db.GetBytes(ctx, path)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRequestFailed, path)
	}
	data := strings.ToValidUTF8(string(body), "\uFFFD")
	if strings.TrimSpace(data) == "" {
		s.log.Error("no data found at %s", path)
		return "", fmt.Errorf("%w at %s", ErrEmptyResult, path)
	}
	if strings.HasPrefix(data, "ERROR") {
		msg, _, _ := strings.Cut(data, "\n")
		s.log.Error("%s", msg)
		return "", fmt.Errorf("%w: %s", ErrServer, strings.TrimSpace(msg))
	}
	return data, nil
}

// QueryTable is Query in txt format, parsed.
func (s *StreamDS) QueryTable(ctx context.Context, stream string, selectors map[string]string) (*Table, error) {
	data, err := s.Query(ctx, stream, DefaultFormat, selectors)
	if err != nil {
		return nil, err
	}
	return ParseTable(data)
}
