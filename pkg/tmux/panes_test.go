package tmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaneLine(t *testing.T) {
	line := "%3\t4242\tclaude - roster\tmain\t2\teditor\t/home/dev/roster"

	pane, ok := parsePaneLine(line)
	require.True(t, ok)
	assert.Equal(t, "%3", pane.ID)
	assert.Equal(t, 4242, pane.PID)
	assert.Equal(t, "claude - roster", pane.Title)
	assert.Equal(t, "main", pane.Session)
	assert.Equal(t, 2, pane.WindowIndex)
	assert.Equal(t, "editor", pane.WindowName)
	assert.Equal(t, "/home/dev/roster", pane.Path)
}

func TestParsePaneLineBadPID(t *testing.T) {
	line := "%3\tX\ttitle\tmain\t2\teditor\t/home"

	pane, ok := parsePaneLine(line)
	require.True(t, ok)
	assert.Equal(t, 0, pane.PID)
}

func TestParsePaneLineMalformed(t *testing.T) {
	_, ok := parsePaneLine("%3\t4242\ttitle")
	assert.False(t, ok)

	_, ok = parsePaneLine("%3\t4242\ttitle\tmain\tNaN\teditor\t/home")
	assert.False(t, ok)
}
