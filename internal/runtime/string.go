package runtime

import "unicode/utf8"

// StringHeader shares ArrayHeader's exact layout (spec.md §4.12 "a
// string container with the same header shape as arrays"): Data points
// at ElementSize=1 UTF-8 bytes, Length is the byte count, Capacity the
// allocated byte count.
type StringHeader = ArrayHeader

// NewString allocates a StringHeader holding s's UTF-8 bytes. Panics if s
// is not valid UTF-8 — compiled code never constructs a string runtime
// value from anything but a string literal or another string operation,
// both of which already guarantee the invariant, so a violation here
// means a miscompiled caller, not recoverable user input.
func NewString(h *Heap, s string) *StringHeader {
	if !utf8.ValidString(s) {
		panic("runtime: NewString given a non-UTF-8 byte sequence")
	}
	n := uint64(len(s))
	hdr := &StringHeader{ElementSize: 1, Length: n, Capacity: n}
	if n > 0 {
		hdr.Data = h.Allocate(n)
		copy(h.bytesAt(hdr.Data), s)
	}
	return hdr
}

// ReadString copies hdr's bytes out into a Go string.
func ReadString(h *Heap, hdr *StringHeader) string {
	if hdr.Length == 0 {
		return ""
	}
	buf := h.bytesAt(hdr.Data)
	if buf == nil {
		return ""
	}
	return string(buf[:hdr.Length])
}

// Concat returns a + b as a freshly allocated string (spec.md §4.12
// "Concat returns either a new header by value (where ABI-safe) or a
// pointer to a heap-allocated header (where it is not)"). This package
// always returns a pointer to a freshly allocated header, the same way
// NewArray returns a pointer to its ArrayHeader; it has no by-value form.
func Concat(h *Heap, a, b *StringHeader) *StringHeader {
	return NewString(h, ReadString(h, a)+ReadString(h, b))
}
