package buffer

// All is the DrainTo count that moves every unit.
const All = -1

// Buffer is an ordered sequence of elements whose length is measured in
// units. For most element types one element is one unit; Text measures runes.
//
// Implementations must conserve data across DrainTo: after
// src.DrainTo(dst, n), the units moved into dst followed by what remains in
// src equal src's prior content, and exactly min(n, src.Len()) units move.
type Buffer[E any] interface {
	// Len returns the number of units held.
	Len() int

	// Elements returns the held elements in order. The slice must not be modified.
	Elements() []E

	// Write appends elements in order.
	Write(elems ...E)

	// DrainTo moves the first count units into dst. A negative count, or one
	// at least Len(), moves everything.
	DrainTo(dst Buffer[E], count int)
}

// Factory creates an empty chunk of type C.
type Factory[C any] func() C

// WriteBuffer appends the elements of src to dst without modifying src.
func WriteBuffer[E any](dst, src Buffer[E]) {
	dst.Write(src.Elements()...)
}

// DrainAll moves everything in src into dst.
func DrainAll[E any](src, dst Buffer[E]) {
	src.DrainTo(dst, All)
}
