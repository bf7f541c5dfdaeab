package api

import (
	"bufio"
	"bytes"
	"io"
)

// maxLineSize bounds a single stream line
const maxLineSize = 1024 * 1024

// sseEvent is one Server-Sent Event
type sseEvent struct {
	Name string
	Data []byte
}

// sseReader parses Server-Sent Events from a response body
type sseReader struct {
	reader *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event with data. io.EOF marks the end of the stream.
func (s *sseReader) Next() (sseEvent, error) {
	var ev sseEvent
	var data [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return sseEvent{}, err
		}
		if len(line) > maxLineSize {
			return sseEvent{}, bufio.ErrTooLong
		}

		trimmed := bytes.TrimRight(line, "\r\n")
		switch {
		case len(trimmed) == 0:
			if len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			ev.Name = ""
		case trimmed[0] == ':':
			// comment / keep-alive
		case bytes.HasPrefix(trimmed, []byte("event:")):
			ev.Name = string(bytes.TrimSpace(trimmed[len("event:"):]))
		case bytes.HasPrefix(trimmed, []byte("data:")):
			value := trimmed[len("data:"):]
			value = bytes.TrimPrefix(value, []byte(" "))
			data = append(data, append([]byte(nil), value...))
		}

		if err == io.EOF {
			if len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			return sseEvent{}, io.EOF
		}
	}
}

// readLines calls fn for every non-empty line of an NDJSON body
func readLines(r io.Reader, fn func(line []byte) (bool, error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		more, err := fn(line)
		if err != nil || !more {
			return err
		}
	}
	return scanner.Err()
}
