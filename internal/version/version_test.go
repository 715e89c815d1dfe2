package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stamp(t *testing.T, version, commit, date string) {
	t.Helper()
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })
	Version, Commit, Date = version, commit, date
}

func TestInfo(t *testing.T) {
	info := Info()
	assert.Contains(t, info, "forager dev")
	assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestInfoStamped(t *testing.T) {
	stamp(t, "1.2.3", "abc1234567890", "2026-10-01")

	info := Info()
	assert.Equal(t, "forager 1.2.3 (commit: abc1234, built: 2026-10-01, "+runtime.GOOS+"/"+runtime.GOARCH+")", info)
	assert.Equal(t, "forager/1.2.3", UserAgent())
}

func TestShort(t *testing.T) {
	for in, want := range map[string]string{
		"abcdefghij": "abcdefg",
		"1234567":    "1234567",
		"abc":        "abc",
		"":           "",
	} {
		assert.Equal(t, want, short(in), in)
	}
}
