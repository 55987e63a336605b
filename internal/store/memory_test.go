package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptforge/internal/instruction"
)

func writeTemplate(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMemoryStore_Empty(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, ok := s.Lookup("anything")
	assert.False(t, ok)
	assert.Empty(t, s.IDs())
}

func TestMemoryStore_Replace(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	s.Replace([]instruction.Template{
		{ID: "b"},
		{ID: "a"},
	})

	assert.Equal(t, []string{"a", "b"}, s.IDs())

	got, ok := s.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)
}

func TestMemoryStore_LoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "software-development/standard.xml", `<template id="software-development/standard" version="2">
  <identity>
    <persona>You are an expert software engineer.</persona>
  </identity>
</template>`)
	writeTemplate(t, dir, "domain/devops.xml", `<template id="domain/devops">
  <execution>
    <directive>Mention infrastructure implications.</directive>
  </execution>
</template>`)
	writeTemplate(t, dir, "notes.txt", "not a template")

	s := NewMemoryStore()
	defer s.Close()

	n, err := s.LoadDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, ok := s.Lookup("software-development/standard")
	require.True(t, ok)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "You are an expert software engineer.", got.Document.Identity.Persona)

	_, ok = s.Lookup("notes")
	assert.False(t, ok)
}

func TestMemoryStore_LoadDirectory_IDFallsBackToPath(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "language/go.xml", `<template>
  <identity>
    <persona>You write idiomatic Go.</persona>
  </identity>
</template>`)

	s := NewMemoryStore()
	defer s.Close()

	_, err := s.LoadDirectory(dir)
	require.NoError(t, err)

	_, ok := s.Lookup("language/go")
	assert.True(t, ok)
}

func TestMemoryStore_LoadDirectory_FailsAsAWhole(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "good.xml", `<template id="good"></template>`)
	writeTemplate(t, dir, "bad.xml", `<template><identity></template>`)

	s := NewMemoryStore()
	defer s.Close()

	s.Replace([]instruction.Template{{ID: "previous"}})

	_, err := s.LoadDirectory(dir)
	require.Error(t, err)

	// The previous snapshot survives a failed load.
	_, ok := s.Lookup("previous")
	assert.True(t, ok)
	_, ok = s.Lookup("good")
	assert.False(t, ok)
}

func TestMemoryStore_ConcurrentLookupDuringReplace(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	s.Replace([]instruction.Template{{ID: "t", Version: 1}})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, ok := s.Lookup("t")
				if ok {
					// A lookup observes a full snapshot, never a torn one.
					assert.Equal(t, "t", got.ID)
				}
			}
		}()
	}

	for v := 2; v < 200; v++ {
		s.Replace([]instruction.Template{{ID: "t", Version: v}})
	}
	close(stop)
	wg.Wait()

	got, ok := s.Lookup("t")
	require.True(t, ok)
	assert.Equal(t, 199, got.Version)
}

func TestMemoryStore_WatchTwiceFails(t *testing.T) {
	dir := t.TempDir()

	s := NewMemoryStore()
	defer s.Close()

	require.NoError(t, s.Watch(dir))
	assert.Error(t, s.Watch(dir))
}
