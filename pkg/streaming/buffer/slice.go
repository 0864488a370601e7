package buffer

// Slice is a Buffer whose unit is one element.
type Slice[E any] struct {
	elems []E
}

// NewSlice returns a Slice holding elems. The Slice takes ownership of elems.
func NewSlice[E any](elems ...E) *Slice[E] {
	return &Slice[E]{elems: elems}
}

// EmptySlice returns an empty Slice. It is usable as a Factory.
func EmptySlice[E any]() *Slice[E] {
	return &Slice[E]{}
}

func (s *Slice[E]) Len() int { return len(s.elems) }

func (s *Slice[E]) Elements() []E { return s.elems }

func (s *Slice[E]) Write(elems ...E) {
	s.elems = append(s.elems, elems...)
}

func (s *Slice[E]) DrainTo(dst Buffer[E], count int) {
	if count < 0 || count >= len(s.elems) {
		dst.Write(s.elems...)
		s.elems = nil
		return
	}
	dst.Write(s.elems[:count]...)
	// copy the tail so the drained prefix is not retained
	rest := make([]E, len(s.elems)-count)
	copy(rest, s.elems[count:])
	s.elems = rest
}

// Bytes is a byte buffer; one byte is one unit.
type Bytes = Slice[byte]

// NewBytes returns a Bytes buffer holding a copy of p.
func NewBytes(p []byte) *Bytes {
	b := make([]byte, len(p))
	copy(b, p)
	return &Bytes{elems: b}
}

// EmptyBytes returns an empty Bytes buffer.
func EmptyBytes() *Bytes {
	return &Bytes{}
}

var _ Buffer[int] = (*Slice[int])(nil)
