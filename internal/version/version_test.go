package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

// pin replaces the build metadata for one test.
func pin(t *testing.T, version, commit string, info *debug.BuildInfo) {
	t.Helper()
	oldV, oldC, oldRead := Version, Commit, readBuildInfo
	t.Cleanup(func() { Version, Commit, readBuildInfo = oldV, oldC, oldRead })
	Version, Commit = version, commit
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
}

func TestLdflagsWin(t *testing.T) {
	pin(t, "2.0.1", "deadbeefcafe", &debug.BuildInfo{
		Main:     debug.Module{Version: "v9.9.9"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0000000000"}},
	})

	v, c := Resolved()
	assert.Equal(t, "2.0.1", v)
	assert.Equal(t, "deadbeefcafe", c)
	assert.Equal(t, "agentclick/2.0.1 (deadbee)", UserAgent())

	info := Info()
	assert.Contains(t, info, "agentclick 2.0.1 (commit: deadbee")
	assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestBuildInfoFallback(t *testing.T) {
	pin(t, "dev", "unknown", &debug.BuildInfo{
		Main:     debug.Module{Version: "v2.1.0"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc1234567890"}},
	})

	v, c := Resolved()
	assert.Equal(t, "v2.1.0", v)
	assert.Equal(t, "abc1234567890", c)
	assert.Equal(t, "agentclick/v2.1.0 (abc1234)", UserAgent())
}

func TestDevelBuildStaysDev(t *testing.T) {
	pin(t, "dev", "unknown", &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	v, c := Resolved()
	assert.Equal(t, "dev", v)
	assert.Equal(t, "unknown", c)
}

func TestNoBuildInfo(t *testing.T) {
	pin(t, "dev", "unknown", nil)
	assert.Contains(t, Info(), "agentclick dev (commit: unknown")
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abcdefg", short("abcdefghij"))
	assert.Equal(t, "abc", short("abc"))
	assert.Equal(t, "", short(""))
}
