package navigator

import "github.com/roach88/navqueue/internal/unit"

// Provider exposes ready-made units over a StackNavigator. Applications
// embed it in their own provider type and add domain units next to these.
//
// Screens and sources are tagged when the unit is built. One the navigator's
// extractor cannot tag yields a unit.Invalid, which a router rejects at
// call time.
type Provider struct {
	unit.Builder[*StackNavigator]
}

// NewProvider returns a Provider bound to nav.
func NewProvider(nav *StackNavigator) *Provider {
	return &Provider{Builder: unit.NewBuilder(nav)}
}

// CloseCurrent closes the top screen.
func (p *Provider) CloseCurrent() *unit.Simple[*StackNavigator] {
	return p.Simple(func(n *StackNavigator) error { return n.Close() })
}

// Show pushes screen.
func (p *Provider) Show(screen any) *unit.Simple[*StackNavigator] {
	return p.tagged(true, screen, func(n *StackNavigator, t string) error { return n.push(t, screen) })
}

// Replace swaps the top screen for screen.
func (p *Provider) Replace(screen any) *unit.Simple[*StackNavigator] {
	return p.tagged(true, screen, func(n *StackNavigator, t string) error { return n.replace(t, screen) })
}

// ChangeRoot clears the stack and shows screen.
func (p *Provider) ChangeRoot(screen any) *unit.Simple[*StackNavigator] {
	return p.tagged(true, screen, func(n *StackNavigator, t string) error { return n.changeRoot(t, screen) })
}

// CloseUntil pops back to the screen identified by source.
func (p *Provider) CloseUntil(source any, inclusive bool) *unit.Simple[*StackNavigator] {
	return p.tagged(true, source, func(n *StackNavigator, t string) error { return n.closeUntil(t, inclusive) })
}

// ClearAll empties the stack.
func (p *Provider) ClearAll() *unit.Simple[*StackNavigator] {
	return p.Simple(func(n *StackNavigator) error { return n.Clear() })
}

// ShowDialog presents screen as a dialog.
func (p *Provider) ShowDialog(screen any) *unit.Simple[*StackNavigator] {
	return p.tagged(false, screen, func(n *StackNavigator, t string) error { return n.dialog(t, screen) })
}

func (p *Provider) tagged(interrupting bool, source any, body func(n *StackNavigator, t string) error) *unit.Simple[*StackNavigator] {
	t, err := p.Navigator().Tags().Extract(source)
	if err != nil {
		return p.Invalid(err)
	}
	return p.SimpleWith(interrupting, func(n *StackNavigator) error { return body(n, t) })
}
