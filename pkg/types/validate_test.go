package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Go ", "go", "SQL", "", "  ", "sql"})
	assert.Equal(t, []string{"go", "sql"}, got)
}

func TestContentHashDeterministic(t *testing.T) {
	a := ContentHash("hello world")
	b := ContentHash("hello world")
	c := ContentHash("hello World")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestMemoryProjectFallsBackToTruncation(t *testing.T) {
	m := &Memory{Content: "short"}
	assert.Equal(t, "short", m.Project(DetailAbstract))
	assert.Equal(t, "short", m.Project(DetailFull))

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	m2 := &Memory{Content: string(long)}
	got := m2.Project(DetailAbstract)
	assert.Len(t, []rune(got), 103) // 100 chars + "..."
}

func TestMemoryIsVisible(t *testing.T) {
	active := &Memory{Status: StatusActive}
	assert.True(t, active.IsVisible(false))

	archived := &Memory{Status: StatusArchived}
	assert.False(t, archived.IsVisible(false))
	assert.True(t, archived.IsVisible(true))

	deleted := &Memory{Status: StatusDeleted}
	assert.False(t, deleted.IsVisible(true))
}
