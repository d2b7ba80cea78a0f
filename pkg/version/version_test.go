package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	// Given: the version package is imported

	// When: accessing Version

	// Then: it is "dev" for builds without ldflags, otherwise semver
	require.NotEmpty(t, Version)
	if Version == "dev" {
		return
	}
	semverRegex := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	assert.True(t, semverRegex.MatchString(Version), "got: %s", Version)
}

func TestString_ReturnsFormattedString(t *testing.T) {
	str := String()

	assert.Contains(t, str, "catalogsearch "+Version)
	assert.Contains(t, str, "commit: "+Commit)
	assert.Contains(t, str, "go: "+GoVersion)
}

func TestShort(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestGetInfo_MarshalsPlatform(t *testing.T) {
	// Given: the build info
	info := GetInfo()

	// When: it is marshalled for `version --format json`
	data, err := json.Marshal(info)
	require.NoError(t, err)

	// Then: platform fields are present under snake_case keys
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, runtime.GOOS, decoded["os"])
	assert.Equal(t, runtime.GOARCH, decoded["arch"])
	assert.Equal(t, GoVersion, decoded["go_version"])
}

func TestVcsStamp(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs", Value: "git"},
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2026-10-17T09:00:00Z"},
	}

	tests := []struct {
		name       string
		commit     string
		date       string
		wantCommit string
		wantDate   string
	}{
		{"unstamped build uses vcs", "unknown", "unknown", "0123456", "2026-10-17T09:00:00Z"},
		{"ldflags win", "abc1234", "2026-01-01", "abc1234", "2026-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commit, date := vcsStamp(settings, tt.commit, tt.date)
			assert.Equal(t, tt.wantCommit, commit)
			assert.Equal(t, tt.wantDate, date)
		})
	}

	commit, date := vcsStamp(nil, "unknown", "unknown")
	assert.Equal(t, "unknown", commit)
	assert.Equal(t, "unknown", date)
}
