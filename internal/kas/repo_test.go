package kas

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestNewRepo_Layers(t *testing.T) {
	cfg := &RepoConfig{
		URL: "https://git.yoctoproject.org/poky.git",
		Layers: map[string]*string{
			"meta-poky":      nil,
			"meta":           nil,
			"meta-yocto-bsp": strp("Disabled"),
			"meta-selftest":  strp("n"),
			"meta-skeleton":  strp("enabled"),
		},
	}
	r, err := NewRepo("poky", cfg, nil, nil, "/top", "/work")
	require.NoError(t, err)

	want := []string{"/work/poky/meta", "/work/poky/meta-poky", "/work/poky/meta-skeleton"}
	if diff := cmp.Diff(want, r.Layers()); diff != "" {
		t.Errorf("layers mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRepo_NoLayersMeansRoot(t *testing.T) {
	r, err := NewRepo("meta-oe", &RepoConfig{URL: "https://x/meta-oe.git"}, nil, nil, "/top", "/work")
	require.NoError(t, err)
	assert.Equal(t, []string{"/work/meta-oe"}, r.Layers())
	assert.Equal(t, VCSGit, r.VCS)
	assert.True(t, r.Managed)
}

func TestNewRepo_Paths(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *RepoConfig
		wantPath    string
		wantURL     string
		wantManaged bool
	}{
		{"nil config is the top repo", nil, "/top", "/top", false},
		{"no url relative path", &RepoConfig{Path: "local/meta"}, "/work/local/meta", "/work/local/meta", false},
		{"no url absolute path", &RepoConfig{Path: "/srv/meta"}, "/srv/meta", "/srv/meta", false},
		{"url default path uses name", &RepoConfig{URL: "https://x/r.git", Name: "renamed"}, "/work/renamed", "https://x/r.git", true},
		{"url relative path", &RepoConfig{URL: "https://x/r.git", Path: "layers/r"}, "/work/layers/r", "https://x/r.git", true},
		{"url absolute path", &RepoConfig{URL: "https://x/r.git", Path: "/srv/r/"}, "/srv/r", "https://x/r.git", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRepo("r", tt.cfg, nil, nil, "/top", "/work")
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, r.Path)
			assert.Equal(t, tt.wantURL, r.URL)
			assert.Equal(t, tt.wantManaged, r.Managed)
		})
	}
}

func TestNewRepo_RevisionPrecedence(t *testing.T) {
	const (
		c1 = "1111111111111111111111111111111111111111"
		c2 = "2222222222222222222222222222222222222222"
		c3 = "3333333333333333333333333333333333333333"
	)
	defaults := &RepoDefaults{Commit: c3, Branch: "main"}

	r, err := NewRepo("r", &RepoConfig{URL: "u", Commit: c2}, defaults, &RepoOverride{Commit: c1}, "", "/w")
	require.NoError(t, err)
	assert.Equal(t, c1, r.Commit)

	r, err = NewRepo("r", &RepoConfig{URL: "u", Commit: c2, Branch: "dev"}, defaults, nil, "", "/w")
	require.NoError(t, err)
	assert.Equal(t, c2, r.Commit)
	assert.Equal(t, "dev", r.Branch)

	r, err = NewRepo("r", &RepoConfig{URL: "u"}, defaults, nil, "", "/w")
	require.NoError(t, err)
	assert.Equal(t, c3, r.Commit)
	assert.Equal(t, "main", r.Branch)
}

func TestNewRepo_Refspec(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef01234567"

	r, err := NewRepo("r", &RepoConfig{URL: "u", Refspec: hash}, nil, nil, "", "/w")
	require.NoError(t, err)
	assert.Equal(t, hash, r.Commit)
	assert.Empty(t, r.Branch)

	r, err = NewRepo("r", &RepoConfig{URL: "u", Refspec: "kirkstone"}, nil, nil, "", "/w")
	require.NoError(t, err)
	assert.Empty(t, r.Commit)
	assert.Equal(t, "kirkstone", r.Branch)

	r, err = NewRepo("r", &RepoConfig{URL: "u"}, &RepoDefaults{Refspec: "master"}, nil, "", "/w")
	require.NoError(t, err)
	assert.Equal(t, "master", r.Branch)

	// refspec is ignored once branch or commit are set
	r, err = NewRepo("r", &RepoConfig{URL: "u", Branch: "dev", Refspec: "master"}, nil, nil, "", "/w")
	require.NoError(t, err)
	assert.Equal(t, "dev", r.Branch)
}

func TestNewRepo_Patches(t *testing.T) {
	cfg := &RepoConfig{
		URL: "u",
		Patches: map[string]*RepoPatch{
			"02-second": {Path: "p/second.patch"},
			"01-first":  {Repo: "poky", Path: "p/first.patch"},
			"03-off":    nil,
		},
	}
	defaults := &RepoDefaults{Patches: &PatchDefaults{Repo: "meta-custom"}}

	r, err := NewRepo("poky", cfg, defaults, nil, "", "/w")
	require.NoError(t, err)
	want := []Patch{
		{ID: "01-first", Repo: "poky", Path: "p/first.patch"},
		{ID: "02-second", Repo: "meta-custom", Path: "p/second.patch"},
	}
	if diff := cmp.Diff(want, r.Patches); diff != "" {
		t.Errorf("patches mismatch (-want +got):\n%s", diff)
	}

	_, err = NewRepo("poky", cfg, nil, nil, "", "/w")
	assert.True(t, errors.Is(err, ErrPatchRepoMissing))
}

func TestRepo_QualifiedName(t *testing.T) {
	tests := map[string]string{
		"https://git.yoctoproject.org/poky.git": "git.yoctoproject.org.poky.git",
		"ssh://git@github.com/org/meta-x.git":   "git.github.com.org.meta-x.git",
		"git@github.com:org/meta-y.git":         "git.github.com.org.meta-y.git",
		"/srv/mirror/meta-z":                    ".srv.mirror.meta-z",
	}
	for url, want := range tests {
		r := &Repo{URL: url}
		assert.Equal(t, want, r.QualifiedName(), url)
	}
}
