package simhost

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navqueue/internal/navigator"
)

func countChanges(h *Host) int {
	n := 0
	for {
		select {
		case <-h.StackChanges():
			n++
		case <-time.After(20 * time.Millisecond):
			return n
		}
	}
}

func TestHost_Mutations(t *testing.T) {
	h := New(WithStack("home"))

	require.NoError(t, h.Push("list", "list"))
	require.NoError(t, h.Push("detail", "detail"))
	require.NoError(t, h.Push("edit", "edit"))
	assert.Equal(t, []string{"home", "list", "detail", "edit"}, h.Tags())

	require.NoError(t, h.PopTo("list", false))
	assert.Equal(t, []string{"home", "list"}, h.Tags())

	require.NoError(t, h.Push("detail", "detail"))
	require.NoError(t, h.PopTo("list", true))
	assert.Equal(t, []string{"home"}, h.Tags())

	require.NoError(t, h.Pop())
	assert.Empty(t, h.Tags())

	assert.Equal(t, 7, countChanges(h))
	assert.Equal(t, []string{
		"push list",
		"push detail",
		"push edit",
		"pop_to list",
		"push detail",
		"pop_to list inclusive",
		"pop",
	}, h.Ops())
}

func TestHost_Visibility(t *testing.T) {
	h := New(WithStack("home", "list"))

	home, ok := h.Find("home")
	require.True(t, ok)
	assert.False(t, home.Visible)

	list, ok := h.Find("list")
	require.True(t, ok)
	assert.True(t, list.Visible)

	require.NoError(t, h.ShowDialog("confirm", "confirm"))
	assert.Equal(t, []string{"confirm"}, h.Dialogs())
	_, ok = h.Find("confirm")
	assert.True(t, ok)
	assert.Equal(t, 0, countChanges(h), "dialogs are not stack changes")

	require.NoError(t, h.Pop())
	assert.Empty(t, h.Dialogs(), "pop dismisses dialogs")
	home, _ = h.Find("home")
	assert.True(t, home.Visible)
}

func TestHost_PopErrors(t *testing.T) {
	h := New()
	assert.Error(t, h.Pop())
	assert.Error(t, h.PopTo("missing", false))
	require.NoError(t, h.PopAll())
	assert.Equal(t, "[]", h.String())
}

func TestHost_PauseRefuses(t *testing.T) {
	h := New(WithStack("home"))

	resumed, ch := h.WatchResume()
	assert.True(t, resumed)

	h.Pause()
	assert.True(t, h.Paused())
	assert.False(t, <-ch)

	err := h.Push("profile", "profile")
	require.Error(t, err)
	assert.True(t, errors.Is(err, navigator.ErrStateLoss))
	assert.Equal(t, "[home]", h.String())

	h.Pause()
	h.Resume()
	assert.True(t, <-ch)
	require.NoError(t, h.Push("profile", "profile"))
	assert.Equal(t, []string{"pause", "resume", "push profile"}, h.Ops())
}

func TestHost_ResumeSignalKeepsLatest(t *testing.T) {
	h := New(StartPaused())

	resumed, ch := h.WatchResume()
	assert.False(t, resumed)

	h.Resume()
	h.Pause()
	h.Resume()

	assert.True(t, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra state %v", v)
	default:
	}
}

func TestHost_HoldAndRelease(t *testing.T) {
	h := New(HoldNotifications())

	require.NoError(t, h.Push("a", "a"))
	require.NoError(t, h.Push("b", "b"))
	require.NoError(t, h.Push("c", "c"))
	assert.Equal(t, 3, h.Held())
	assert.Equal(t, 0, countChanges(h))

	assert.Equal(t, 1, h.Release(1))
	assert.Equal(t, 1, countChanges(h))
	assert.Equal(t, 2, h.Held())

	assert.Equal(t, 2, h.Release(-1))
	assert.Equal(t, 2, countChanges(h))

	require.NoError(t, h.Push("d", "d"))
	assert.Equal(t, 1, countChanges(h), "release stops holding")

	h.Hold()
	require.NoError(t, h.Pop())
	assert.Equal(t, 1, h.Held())
}

func TestHost_Emit(t *testing.T) {
	h := New(WithStack("home", "list"))

	h.Emit()
	assert.Equal(t, []string{"home"}, h.Tags())
	assert.Equal(t, 1, countChanges(h))
	assert.Equal(t, []string{"external"}, h.Ops())
}

func TestHost_ImplementsNavigatorHost(t *testing.T) {
	var _ navigator.Host = New()
}
