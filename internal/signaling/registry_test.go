package signaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSender struct{}

func (nopSender) Send(env Envelope) bool { return true }

func TestRegistry(t *testing.T) {
	t.Run("lookup after register", func(t *testing.T) {
		r := NewRegistry()
		sender := nopSender{}
		r.Register("abc", sender)

		got, ok := r.Lookup("abc")
		require.True(t, ok)
		assert.Equal(t, sender, got)
		assert.Equal(t, 1, r.Count())
	})

	t.Run("lookup of absent identity is a normal miss", func(t *testing.T) {
		r := NewRegistry()
		_, ok := r.Lookup("missing")
		assert.False(t, ok)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		r := NewRegistry()
		r.Register("abc", nopSender{})

		r.Remove("abc")
		r.Remove("abc")
		r.Remove("never-registered")

		_, ok := r.Lookup("abc")
		assert.False(t, ok)
		assert.Equal(t, 0, r.Count())
	})
}
