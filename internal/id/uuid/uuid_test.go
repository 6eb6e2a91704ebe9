package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewRunID(t *testing.T) {
	t.Parallel()

	a, b := NewRunID(), NewRunID()
	require.NotEqual(t, a, b)
	require.Equal(t, goUUID.Version(7), a.Version())
	require.LessOrEqual(t, a.String()[:8], b.String()[:8])
}
