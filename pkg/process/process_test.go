package process

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProcessAlive(t *testing.T) {
	tests := []struct {
		name string
		pid  int
		want bool
	}{
		{"own process", os.Getpid(), true},
		{"parent process", os.Getppid(), true},
		{"zero pid", 0, false},
		{"negative pid", -1, false},
		{"unlikely pid", 1 << 28, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsProcessAlive(tt.pid))
		})
	}
}

func TestInspectorParentPID(t *testing.T) {
	insp := NewInspector()

	ppid, err := insp.ParentPID(context.Background(), os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, os.Getppid(), ppid)
}

func TestInspectorStartTime(t *testing.T) {
	insp := NewInspector()
	ctx := context.Background()

	first, err := insp.StartTime(ctx, os.Getpid())
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// The fingerprint must be stable for a live process.
	second, err := insp.StartTime(ctx, os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInspectorStartTimeGone(t *testing.T) {
	insp := NewInspector()

	_, err := insp.StartTime(context.Background(), 1<<28)
	assert.Error(t, err)
}

func TestInspectorAncestors(t *testing.T) {
	insp := NewInspector()
	ctx := context.Background()

	chain, err := insp.Ancestors(ctx, os.Getpid(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, chain)
	assert.Equal(t, os.Getppid(), chain[0])
	assert.LessOrEqual(t, len(chain), 10)

	seen := make(map[int]bool)
	for _, pid := range chain {
		assert.False(t, seen[pid], "duplicate pid %d in chain", pid)
		seen[pid] = true
	}
}

func TestInspectorAncestorsBounded(t *testing.T) {
	insp := NewInspector()

	chain, err := insp.Ancestors(context.Background(), os.Getpid(), 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(chain), 1)
}
