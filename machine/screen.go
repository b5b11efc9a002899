package machine

import "sync"

// Screen is a text console that collects emitted bytes for the GUI.
// It is safe for concurrent use.
type Screen struct {
	cols, rows int

	mu      sync.Mutex
	lines   [][]byte
	version int
}

// NewScreen returns a screen that keeps the last rows lines of at most
// cols characters each.
func NewScreen(cols, rows int) *Screen {
	return &Screen{cols: cols, rows: rows, lines: [][]byte{nil}}
}

// Write implements io.Writer.
func (s *Screen) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range p {
		switch {
		case c == '\n':
			s.newline()
			continue
		case c == '\r':
			s.lines[len(s.lines)-1] = s.lines[len(s.lines)-1][:0]
			continue
		case c == '\t':
			c = ' '
		case c < 0x20 || c >= 0x7f:
			c = '?'
		}
		if len(s.lines[len(s.lines)-1]) == s.cols {
			s.newline()
		}
		s.lines[len(s.lines)-1] = append(s.lines[len(s.lines)-1], c)
	}
	s.version++
	return len(p), nil
}

func (s *Screen) newline() {
	s.lines = append(s.lines, nil)
	if len(s.lines) > s.rows {
		s.lines = s.lines[len(s.lines)-s.rows:]
	}
}

// Lines returns a copy of the visible lines and a version number that
// changes whenever the contents do.
func (s *Screen) Lines() (lines []string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines {
		lines = append(lines, string(l))
	}
	return lines, s.version
}

// Clear empties the screen.
func (s *Screen) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = [][]byte{nil}
	s.version++
}
