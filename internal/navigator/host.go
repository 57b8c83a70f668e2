package navigator

// Entry is one screen on the host's presentation stack.
type Entry struct {
	Tag     string
	Screen  any
	Visible bool
}

// Host is the imperative mutation surface of the presentation stack. It does
// not confirm mutations; confirmation arrives later as a stack-change
// notification on the host's lifecycle stream, one per stack mutation.
//
// Mutations return an error wrapping ErrStateLoss while the host cannot
// accept them.
type Host interface {
	// Push adds screen on top of the stack under tag.
	Push(tag string, screen any) error
	// Pop removes the top entry.
	Pop() error
	// PopTo removes entries above the topmost entry tagged tag, and that
	// entry too when inclusive is set.
	PopTo(tag string, inclusive bool) error
	// PopAll empties the stack.
	PopAll() error
	// ShowDialog presents screen above the stack without adding an entry.
	ShowDialog(tag string, screen any) error

	// Depth returns the number of stack entries.
	Depth() int
	// Find returns the entry tagged tag, if present on the stack or shown as
	// a dialog.
	Find(tag string) (Entry, bool)
	// Entries returns the stack, bottom first.
	Entries() []Entry
}
