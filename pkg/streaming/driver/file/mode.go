package file

import (
	"os"
	"strings"
)

// Mode selects how a file is opened. Modes combine with |.
type Mode uint

const (
	ReadOnly Mode = 1 << iota
	WriteOnly
	Append
	Create
	Truncate

	ReadWrite = ReadOnly | WriteOnly
)

// CanRead returns true if the mode allows reading.
func (m Mode) CanRead() bool { return m&ReadOnly != 0 }

// CanWrite returns true if the mode allows writing.
func (m Mode) CanWrite() bool { return m&(WriteOnly|Append) != 0 }

func (m Mode) flags() int {
	var flag int
	switch {
	case m.CanRead() && m.CanWrite():
		flag = os.O_RDWR
	case m.CanWrite():
		flag = os.O_WRONLY
	default:
		flag = os.O_RDONLY
	}
	if m&Append != 0 {
		flag |= os.O_APPEND
	}
	if m&Create != 0 {
		flag |= os.O_CREATE
	}
	if m&Truncate != 0 {
		flag |= os.O_TRUNC
	}
	return flag
}

func (m Mode) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	names := []struct {
		bit  Mode
		name string
	}{
		{ReadOnly, "read"},
		{WriteOnly, "write"},
		{Append, "append"},
		{Create, "create"},
		{Truncate, "truncate"},
	}
	for _, n := range names {
		if m&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
