package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWrapf(t *testing.T) {
	original := New("original")
	wrapped := Wrapf(original, "query %s", "grid squares")

	assert.Equal(t, "query grid squares: original", wrapped.Error())
}

func TestWithHint(t *testing.T) {
	err := WithHint(New("ambiguous"), "join the linker explicitly")
	assert.Equal(t, []string{"join the linker explicitly"}, GetAllHints(err))
}

func TestSentinels(t *testing.T) {
	t.Run("not found survives wrapping", func(t *testing.T) {
		err := Wrap(NewNotFoundError("exposure %q", "e1"), "exposure lookup")

		assert.True(t, IsNotFoundError(err))
		assert.Equal(t, `exposure lookup: exposure "e1"`, err.Error())
	})

	t.Run("invalid request", func(t *testing.T) {
		err := NewInvalidRequestError("unknown driver %q", "mysql")
		assert.True(t, IsInvalidRequestError(err))
		assert.False(t, IsNotFoundError(err))
		assert.Equal(t, `unknown driver "mysql"`, err.Error())
	})

	t.Run("conflict", func(t *testing.T) {
		err := Wrap(NewConflictError("two particles at (%d, %d)", 1, 2), "particle lookup")
		assert.True(t, IsConflictError(err))
	})

	t.Run("nil is never a sentinel", func(t *testing.T) {
		assert.False(t, IsNotFoundError(nil))
		assert.False(t, IsInvalidRequestError(nil))
		assert.False(t, IsConflictError(nil))
	})
}

func TestWithSecondaryError(t *testing.T) {
	err := WithSecondaryError(NewConflictError("atlas shared"), fmt.Errorf("rollback failed"))
	assert.True(t, IsConflictError(err))
	assert.Equal(t, "atlas shared", err.Error())
}

func TestAssertionFailedf(t *testing.T) {
	err := AssertionFailedf("%s has no key", "Tile")
	assert.Contains(t, err.Error(), "Tile has no key")
	assert.False(t, IsNotFoundError(err))
}

func TestFlattenHints(t *testing.T) {
	err := WithHint(WithHint(New("no project"), "list projects"), "check the name")
	assert.Equal(t, "list projects\n--\ncheck the name", FlattenHints(err))
}
