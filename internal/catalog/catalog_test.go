package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/logging"
)

func writeDoc(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestCatalog(t *testing.T, cacheSize int) (*Catalog, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), ".claude")
	return New(Options{Root: root, CacheSize: cacheSize, Logger: logging.New(nil, "silent")}), root
}

func TestSplitDocument(t *testing.T) {
	header, body, err := splitDocument("---\nid: x\nname: X\n---\nBody {{input}}\n")
	require.NoError(t, err)
	assert.Equal(t, "id: x\nname: X", header)
	assert.Equal(t, "Body {{input}}\n", body)

	_, body, err = splitDocument("just text")
	assert.ErrorIs(t, err, errNoHeader)
	assert.Equal(t, "just text", body)

	_, _, err = splitDocument("---\nid: x\nno close")
	assert.ErrorIs(t, err, errUnclosedHeader)

	header, body, err = splitDocument("---\r\nid: x\r\n---\r\nwin")
	require.NoError(t, err)
	assert.Contains(t, header, "id: x")
	assert.Equal(t, "win", body)
}

func TestParseHeader(t *testing.T) {
	meta, err := parseHeader("id: a\ntools: [Read, Grep]")
	require.NoError(t, err)
	assert.Equal(t, "a", meta["id"])

	_, err = parseHeader("id: [unclosed")
	assert.Error(t, err)

	_, err = parseHeader("- just\n- a list")
	assert.Error(t, err)

	meta, err = parseHeader("  ")
	require.NoError(t, err)
	assert.Empty(t, meta)
}

func TestScanAll_ThreeKinds(t *testing.T) {
	c, root := newTestCatalog(t, 0)
	writeDoc(t, filepath.Join(root, "commands", "review.md"), "---\nid: review\nname: Review\ndescription: Reviews code\nversion: 2.0\n---\nReview {{input}}")
	writeDoc(t, filepath.Join(root, "commands", "notes.txt"), "ignored")
	writeDoc(t, filepath.Join(root, "skills", "summarize", "SKILL.md"), "---\nname: Summarize\ncustom_tools: [WebFetch]\n---\nSummarize")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "skills", "empty"), 0o755))
	writeDoc(t, filepath.Join(root, "agents", "planner.md"), "---\nid: planner\nname: Planner\nemoji: \"🧭\"\ncolor: \"#123456\"\nowner: team-a\n---\nPlan")

	agents := c.ScanAll()
	require.Len(t, agents, 3)

	review, ok := c.Get("review")
	require.True(t, ok)
	assert.Equal(t, domain.KindCommand, review.Kind)
	assert.Equal(t, "📝", review.Emoji)
	assert.Equal(t, "#3498db", review.Color)
	assert.Equal(t, "Reviews code", review.Description)
	assert.Equal(t, "2", review.Version)
	assert.True(t, review.Enabled)

	skill, ok := c.Get("summarize")
	require.True(t, ok, "skill id derives from its directory")
	assert.Equal(t, domain.KindSkill, skill.Kind)
	assert.Equal(t, "🎯", skill.Emoji)
	assert.Equal(t, []string{"WebFetch"}, skill.CustomTools)

	planner, ok := c.Get("planner")
	require.True(t, ok)
	assert.Equal(t, domain.KindAgent, planner.Kind)
	assert.Equal(t, "🧭", planner.Emoji)
	assert.Equal(t, "#123456", planner.Color)
	assert.Equal(t, "team-a", planner.Extra["owner"])

	assert.Len(t, c.ListKind(domain.KindCommand), 1)
}

func TestScanAll_MissingRoot(t *testing.T) {
	c, _ := newTestCatalog(t, 0)
	assert.Empty(t, c.ScanAll())
}

func TestScanAll_SkipsBadHeaders(t *testing.T) {
	c, root := newTestCatalog(t, 0)
	writeDoc(t, filepath.Join(root, "commands", "good.md"), "---\nid: good\nname: Good\n---\nok")
	writeDoc(t, filepath.Join(root, "commands", "broken.md"), "---\nid: [oops\n---\nbody")
	writeDoc(t, filepath.Join(root, "commands", "unclosed.md"), "---\nid: u\n")

	agents := c.ScanAll()
	require.Len(t, agents, 1)
	assert.Equal(t, "good", agents[0].ID)
}

func TestScanAll_DerivesInvalidFields(t *testing.T) {
	c, root := newTestCatalog(t, 0)
	writeDoc(t, filepath.Join(root, "commands", "fallback.md"), "---\nid: 42\nname: \"\"\n---\nbody")
	writeDoc(t, filepath.Join(root, "agents", "plain.md"), "no header at all")

	c.ScanAll()
	a, ok := c.Get("fallback")
	require.True(t, ok)
	assert.Equal(t, "fallback", a.Name)

	plain, ok := c.Get("plain")
	require.True(t, ok)
	assert.Equal(t, "plain", plain.Name)
}

func TestScanAll_DuplicateIDKeepsFirst(t *testing.T) {
	c, root := newTestCatalog(t, 0)
	writeDoc(t, filepath.Join(root, "commands", "a.md"), "---\nid: same\nname: From Command\n---\n")
	writeDoc(t, filepath.Join(root, "agents", "b.md"), "---\nid: same\nname: From Agent\n---\n")

	agents := c.ScanAll()
	require.Len(t, agents, 1)
	assert.Equal(t, domain.KindCommand, agents[0].Kind)
}

func TestLookup(t *testing.T) {
	c, root := newTestCatalog(t, 0)
	writeDoc(t, filepath.Join(root, "commands", "off.md"), "---\nid: off\nname: Off\nenabled: false\n---\n")
	c.ScanAll()

	_, err := c.Lookup("off")
	var nf *domain.AgentNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.True(t, nf.Disabled)

	_, err = c.Lookup("nope")
	require.True(t, errors.As(err, &nf))
	assert.False(t, nf.Disabled)
}

func TestLoadContent_Memoized(t *testing.T) {
	c, root := newTestCatalog(t, 0)
	path := filepath.Join(root, "commands", "x.md")
	writeDoc(t, path, "---\nid: x\nname: X\n---\nFirst body")
	c.ScanAll()
	a, _ := c.Get("x")

	_, loaded := a.Content()
	assert.False(t, loaded, "content is not read at scan time")

	body, err := c.LoadContent(a)
	require.NoError(t, err)
	assert.Equal(t, "First body", body)

	// Changing the file does not affect the memoized body.
	writeDoc(t, path, "---\nid: x\nname: X\n---\nSecond body")
	body, err = c.LoadContent(a)
	require.NoError(t, err)
	assert.Equal(t, "First body", body)
}

func TestLoadContent_ErrorNamesPath(t *testing.T) {
	c, root := newTestCatalog(t, 0)
	path := filepath.Join(root, "commands", "gone.md")
	writeDoc(t, path, "---\nid: gone\nname: Gone\n---\nbody")
	c.ScanAll()
	a, _ := c.Get("gone")
	require.NoError(t, os.Remove(path))

	_, err := c.LoadContent(a)
	var ce *ContentError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, path, ce.Path)
	assert.Contains(t, err.Error(), path)
}

func TestLoadContent_InvalidUTF8(t *testing.T) {
	c, root := newTestCatalog(t, 0)
	path := filepath.Join(root, "commands", "bin.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0xfd}, 0o644))
	c.ScanAll()
	a, ok := c.Get("bin")
	require.True(t, ok)

	_, err := c.LoadContent(a)
	var ce *ContentError
	assert.True(t, errors.As(err, &ce))
}

func TestReload(t *testing.T) {
	c, root := newTestCatalog(t, 0)
	path := filepath.Join(root, "commands", "r.md")
	writeDoc(t, path, "---\nid: r\nname: Before\n---\n")
	c.ScanAll()

	writeDoc(t, path, "---\nid: r\nname: After\n---\n")
	a, err := c.Reload("r")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "After", a.Name)

	require.NoError(t, os.Remove(path))
	a, err = c.Reload("r")
	require.NoError(t, err)
	assert.Nil(t, a)
	_, ok := c.Get("r")
	assert.False(t, ok)

	_, err = c.Reload("never")
	assert.Error(t, err)
}

func TestGetCached_ReparsesOnMtimeChange(t *testing.T) {
	c, root := newTestCatalog(t, 0)
	path := filepath.Join(root, "commands", "m.md")
	writeDoc(t, path, "---\nid: m\nname: One\n---\n")
	c.ScanAll()

	first, ok := c.GetCached("m")
	require.True(t, ok)
	again, ok := c.GetCached("m")
	require.True(t, ok)
	assert.Same(t, first, again)

	writeDoc(t, path, "---\nid: m\nname: Two\n---\n")
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	updated, ok := c.GetCached("m")
	require.True(t, ok)
	assert.Equal(t, "Two", updated.Name)
}

func TestCache_FIFOEviction(t *testing.T) {
	cache := newMetadataCache(2)
	cache.put("a", cacheEntry{path: "a"})
	cache.put("b", cacheEntry{path: "b"})

	// Reading or refreshing "a" must not protect it.
	_, _ = cache.get("a")
	cache.put("a", cacheEntry{path: "a2"})
	cache.put("c", cacheEntry{path: "c"})

	assert.Equal(t, []string{"b", "c"}, cache.keys())
	_, ok := cache.get("a")
	assert.False(t, ok)
}

func TestScanAll_CacheBounded(t *testing.T) {
	c, root := newTestCatalog(t, 2)
	for _, id := range []string{"a", "b", "c"} {
		writeDoc(t, filepath.Join(root, "commands", id+".md"), "---\nid: "+id+"\nname: "+id+"\n---\n")
	}
	agents := c.ScanAll()
	assert.Len(t, agents, 3, "index is not bounded by the cache")
	assert.Equal(t, 2, c.CacheLen())
}

func TestPoll_EmitsChanges(t *testing.T) {
	c, root := newTestCatalog(t, 0)
	keep := filepath.Join(root, "commands", "keep.md")
	drop := filepath.Join(root, "commands", "drop.md")
	writeDoc(t, keep, "---\nid: keep\nname: Keep\n---\n")
	writeDoc(t, drop, "---\nid: drop\nname: Drop\n---\n")
	c.ScanAll()

	var mu sync.Mutex
	var got []ChangeEvent
	c.OnChange(func(ev ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})
	c.OnChange(func(ChangeEvent) { panic("bad callback") })

	assert.Empty(t, c.Poll(), "no changes yet")

	writeDoc(t, keep, "---\nid: keep\nname: Keep v2\n---\n")
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(keep, later, later))
	require.NoError(t, os.Remove(drop))
	writeDoc(t, filepath.Join(root, "skills", "fresh", "SKILL.md"), "---\nname: Fresh\n---\n")

	events := c.Poll()
	require.Len(t, events, 3)
	assert.Equal(t, ChangeEvent{Kind: ChangeModified, AgentID: "keep", AgentKind: domain.KindCommand, Source: keep}, events[0])
	assert.Equal(t, ChangeAdded, events[1].Kind)
	assert.Equal(t, "fresh", events[1].AgentID)
	assert.Equal(t, ChangeRemoved, events[2].Kind)
	assert.Equal(t, "drop", events[2].AgentID)

	mu.Lock()
	assert.Equal(t, events, got)
	mu.Unlock()
}

func TestPoll_SizeOnlyEditIsModified(t *testing.T) {
	c, root := newTestCatalog(t, 0)
	path := filepath.Join(root, "commands", "same.md")
	writeDoc(t, path, "---\nid: same\nname: Same\n---\nshort\n")
	stamp := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
	c.ScanAll()

	writeDoc(t, path, "---\nid: same\nname: Same\n---\na much longer body\n")
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	events := c.Poll()
	require.Len(t, events, 1)
	assert.Equal(t, ChangeModified, events[0].Kind)
	assert.Equal(t, "same", events[0].AgentID)
}

func TestWatch_StopsOnCancel(t *testing.T) {
	c, root := newTestCatalog(t, 0)
	c.ScanAll()

	added := make(chan ChangeEvent, 1)
	c.OnChange(func(ev ChangeEvent) {
		select {
		case added <- ev:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Watch(ctx, 10*time.Millisecond)
		close(done)
	}()

	writeDoc(t, filepath.Join(root, "agents", "late.md"), "---\nid: late\nname: Late\n---\n")
	select {
	case ev := <-added:
		assert.Equal(t, "late", ev.AgentID)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not report the new agent")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestStringList(t *testing.T) {
	assert.Equal(t, []string{"Read", "Grep"}, stringList([]any{"Read", " Grep "}))
	assert.Equal(t, []string{"Read", "Write"}, stringList("Read, Write,"))
	assert.Nil(t, stringList(42))
}
