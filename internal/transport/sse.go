package transport

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// sseEvent is one server-sent event after field accumulation.
type sseEvent struct {
	ID    string
	Type  string
	Data  string
	Retry int
}

// sseScanner incrementally parses a text/event-stream body. It follows the
// WHATWG dispatch rules: fields accumulate until a blank line, multi-line
// data joins with newlines, comment lines are skipped, and an absent event
// field defaults to "message".
type sseScanner struct {
	r *bufio.Reader

	id    string
	typ   string
	data  strings.Builder
	retry int
}

func newSSEScanner(r io.Reader) *sseScanner {
	return &sseScanner{r: bufio.NewReader(r)}
}

// Next blocks until a complete event is available. It returns io.EOF when
// the stream ends cleanly.
func (s *sseScanner) Next() (*sseEvent, error) {
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				return nil, io.EOF
			}

			if err != io.EOF {
				return nil, err
			}
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if ev := s.dispatch(); ev != nil {
				return ev, nil
			}

			if err == io.EOF {
				return nil, io.EOF
			}

			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if !found {
			field = line
		}

		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			s.typ = value
		case "data":
			if s.data.Len() > 0 {
				s.data.WriteByte('\n')
			}

			s.data.WriteString(value)
		case "id":
			// IDs containing NUL are ignored per the stream format.
			if !strings.ContainsRune(value, 0) {
				s.id = value
			}
		case "retry":
			if ms, perr := strconv.Atoi(value); perr == nil {
				s.retry = ms
			}
		}

		if err == io.EOF {
			if ev := s.dispatch(); ev != nil {
				return ev, nil
			}

			return nil, io.EOF
		}
	}
}

// dispatch flushes the accumulated fields into an event, or nil when no
// data was buffered.
func (s *sseScanner) dispatch() *sseEvent {
	if s.data.Len() == 0 {
		s.typ = ""

		return nil
	}

	ev := &sseEvent{
		ID:    s.id,
		Type:  s.typ,
		Data:  s.data.String(),
		Retry: s.retry,
	}

	if ev.Type == "" {
		ev.Type = "message"
	}

	s.typ = ""
	s.data.Reset()

	return ev
}
