package navigator

import (
	"fmt"

	"github.com/roach88/navqueue/internal/tag"
)

// StackNavigator is a navigator over a Host with the common set of stack
// operations. Applications embed it to add their own operations; those must
// call Mark for every mutation they perform.
type StackNavigator struct {
	Session

	host Host
	tags tag.Extractor
}

// NewStackNavigator builds a navigator over host. A nil extractor selects
// tag.Default().
func NewStackNavigator(host Host, tags tag.Extractor) *StackNavigator {
	if tags == nil {
		tags = tag.Default()
	}
	return &StackNavigator{host: host, tags: tags}
}

// Tags returns the extractor used to derive stack tags.
func (n *StackNavigator) Tags() tag.Extractor {
	return n.tags
}

// Close pops the top entry. It does nothing on an empty stack.
func (n *StackNavigator) Close() error {
	if n.host.Depth() == 0 {
		return nil
	}
	if err := n.host.Pop(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	n.Mark()
	return nil
}

// CloseUntil pops entries above the screen identified by source, and that
// screen as well when inclusive is set. It does nothing if the screen is not
// shown.
func (n *StackNavigator) CloseUntil(source any, inclusive bool) error {
	t, err := n.tags.Extract(source)
	if err != nil {
		return err
	}
	return n.closeUntil(t, inclusive)
}

func (n *StackNavigator) closeUntil(t string, inclusive bool) error {
	if _, ok := n.host.Find(t); !ok {
		return nil
	}
	if err := n.host.PopTo(t, inclusive); err != nil {
		return fmt.Errorf("close until %s: %w", t, err)
	}
	n.Mark()
	return nil
}

// Clear empties the stack. It does nothing on an empty stack.
func (n *StackNavigator) Clear() error {
	if n.host.Depth() == 0 {
		return nil
	}
	if err := n.host.PopAll(); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	n.Mark()
	return nil
}

// Show pushes screen on top of the stack.
func (n *StackNavigator) Show(screen any) error {
	t, err := n.tags.Extract(screen)
	if err != nil {
		return err
	}
	return n.push(t, screen)
}

func (n *StackNavigator) push(t string, screen any) error {
	if err := n.host.Push(t, screen); err != nil {
		return fmt.Errorf("show %s: %w", t, err)
	}
	n.Mark()
	return nil
}

// ShowDialog presents screen as a dialog. Dialogs are not stack entries and
// produce no stack-change notification, so nothing is counted.
func (n *StackNavigator) ShowDialog(screen any) error {
	t, err := n.tags.Extract(screen)
	if err != nil {
		return err
	}
	return n.dialog(t, screen)
}

func (n *StackNavigator) dialog(t string, screen any) error {
	if err := n.host.ShowDialog(t, screen); err != nil {
		return fmt.Errorf("show dialog %s: %w", t, err)
	}
	return nil
}

// ChangeRoot clears the stack and shows screen. Nothing is touched if screen
// cannot be tagged.
func (n *StackNavigator) ChangeRoot(screen any) error {
	t, err := n.tags.Extract(screen)
	if err != nil {
		return err
	}
	return n.changeRoot(t, screen)
}

func (n *StackNavigator) changeRoot(t string, screen any) error {
	if err := n.Clear(); err != nil {
		return err
	}
	return n.push(t, screen)
}

// Replace closes the top entry and shows screen. Nothing is touched if
// screen cannot be tagged.
func (n *StackNavigator) Replace(screen any) error {
	t, err := n.tags.Extract(screen)
	if err != nil {
		return err
	}
	return n.replace(t, screen)
}

func (n *StackNavigator) replace(t string, screen any) error {
	if err := n.Close(); err != nil {
		return err
	}
	return n.push(t, screen)
}

// IsShown reports whether the screen identified by source is on the stack.
func (n *StackNavigator) IsShown(source any) (bool, error) {
	t, err := n.tags.Extract(source)
	if err != nil {
		return false, err
	}
	_, ok := n.host.Find(t)
	return ok, nil
}

// IsVisible reports whether the screen identified by source is visible.
func (n *StackNavigator) IsVisible(source any) (bool, error) {
	t, err := n.tags.Extract(source)
	if err != nil {
		return false, err
	}
	e, ok := n.host.Find(t)
	return ok && e.Visible, nil
}

// Stack returns the tags on the stack, bottom first.
func (n *StackNavigator) Stack() []string {
	entries := n.host.Entries()
	tags := make([]string, len(entries))
	for i, e := range entries {
		tags[i] = e.Tag
	}
	return tags
}
