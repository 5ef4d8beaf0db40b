package update

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pointAtServer redirects the release feed at a local handler for one test.
func pointAtServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	prev := GitHubReleasesURL
	GitHubReleasesURL = server.URL
	t.Cleanup(func() {
		server.Close()
		GitHubReleasesURL = prev
	})
	return server
}

func releaseHandler(tag string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Release{
			TagName: tag,
			HTMLURL: "https://github.com/branchlabs/branch-cli/releases/tag/" + tag,
		})
	}
}

func TestNormalizeVersion(t *testing.T) {
	for input, want := range map[string]string{
		"1.0.0":  "v1.0.0",
		"v1.0.0": "v1.0.0",
		"0.1.0":  "v0.1.0",
		"":       "v",
		"v":      "v",
	} {
		assert.Equal(t, want, normalizeVersion(input), "input %q", input)
	}
}

func TestCheckForUpdateSkipsDevBuilds(t *testing.T) {
	assert.Nil(t, CheckForUpdate(context.Background(), "dev"))
	assert.Nil(t, CheckForUpdate(context.Background(), ""))
}

func TestCheckForUpdateNewerRelease(t *testing.T) {
	pointAtServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		releaseHandler("v2.0.0")(w, r)
	})

	result := CheckForUpdate(context.Background(), "1.0.0")
	require.NotNil(t, result)
	assert.True(t, result.UpdateAvailable)
	assert.Equal(t, "1.0.0", result.CurrentVersion)
	assert.Equal(t, "2.0.0", result.LatestVersion, "v prefix stripped for display")
	assert.NotEmpty(t, result.UpdateURL)
}

func TestCheckForUpdateVersionComparisons(t *testing.T) {
	cases := map[string]struct {
		current string
		latest  string
		want    bool
	}{
		"same version":     {current: "1.0.0", latest: "v1.0.0", want: false},
		"current is newer": {current: "2.0.0", latest: "v1.0.0", want: false},
		"patch release":    {current: "1.0.0", latest: "v1.0.1", want: true},
		"invalid tag":      {current: "1.0.0", latest: "not-a-version", want: false},
		"empty tag":        {current: "1.0.0", latest: "", want: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			pointAtServer(t, releaseHandler(tc.latest))

			result := CheckForUpdate(context.Background(), tc.current)
			require.NotNil(t, result)
			assert.Equal(t, tc.want, result.UpdateAvailable)
		})
	}
}

func TestCheckForUpdateSwallowsFailures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		pointAtServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		assert.Nil(t, CheckForUpdate(context.Background(), "1.0.0"))
	})

	t.Run("rate limited", func(t *testing.T) {
		pointAtServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		assert.Nil(t, CheckForUpdate(context.Background(), "1.0.0"))
	})

	t.Run("malformed body", func(t *testing.T) {
		pointAtServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("invalid json"))
		})
		assert.Nil(t, CheckForUpdate(context.Background(), "1.0.0"))
	})

	t.Run("canceled context", func(t *testing.T) {
		pointAtServer(t, releaseHandler("v2.0.0"))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Nil(t, CheckForUpdate(ctx, "1.0.0"))
	})

	t.Run("unreachable host", func(t *testing.T) {
		prev := GitHubReleasesURL
		GitHubReleasesURL = "http://localhost:1"
		t.Cleanup(func() { GitHubReleasesURL = prev })
		assert.Nil(t, CheckForUpdate(context.Background(), "1.0.0"))
	})
}
