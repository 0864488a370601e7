package buffer

import (
	"strings"
	"unicode/utf8"
)

// Text holds string segments and measures its length in runes. Partial
// drains split a segment on a rune boundary, never inside an encoding.
type Text struct {
	segments []string
	runes    int
}

// NewText returns a Text holding the given segments.
func NewText(segments ...string) *Text {
	t := &Text{}
	t.Write(segments...)
	return t
}

// EmptyText returns an empty Text. It is usable as a Factory.
func EmptyText() *Text {
	return &Text{}
}

func (t *Text) Len() int { return t.runes }

func (t *Text) Elements() []string { return t.segments }

func (t *Text) Write(segments ...string) {
	for _, s := range segments {
		if s == "" {
			continue
		}
		t.segments = append(t.segments, s)
		t.runes += utf8.RuneCountInString(s)
	}
}

func (t *Text) DrainTo(dst Buffer[string], count int) {
	if count < 0 || count >= t.runes {
		dst.Write(t.segments...)
		t.segments = nil
		t.runes = 0
		return
	}

	moved := 0
	i := 0
	for ; i < len(t.segments) && moved < count; i++ {
		seg := t.segments[i]
		n := utf8.RuneCountInString(seg)
		if moved+n <= count {
			dst.Write(seg)
			moved += n
			continue
		}
		cut := byteOffset(seg, count-moved)
		dst.Write(seg[:cut])
		t.segments[i] = seg[cut:]
		moved = count
		break
	}
	t.segments = append([]string(nil), t.segments[i:]...)
	t.runes -= moved
}

// String returns the concatenated content.
func (t *Text) String() string {
	return strings.Join(t.segments, "")
}

// byteOffset returns the byte index of rune number n in s.
func byteOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

var _ Buffer[string] = (*Text)(nil)
