// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{RunID: "run-1", RepoID: "poky", URL: "https://git.yoctoproject.org/poky.git", Path: "/w/poky", Revision: "aaa", Action: ActionCheckout, At: base},
		{RunID: "run-1", RepoID: "meta-oe", URL: "https://github.com/openembedded/meta-openembedded.git", Path: "/w/meta-oe", Revision: "bbb", Action: ActionDirty, At: base.Add(time.Second)},
		{RunID: "run-2", RepoID: "poky", URL: "https://git.yoctoproject.org/poky.git", Path: "/w/poky", Revision: "ccc", Action: ActionCheckout, At: base.Add(time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, s.Record(ctx, e))
	}

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ccc", all[0].Revision)
	assert.Equal(t, "aaa", all[2].Revision)
	assert.True(t, all[0].At.Equal(base.Add(time.Minute)))

	poky, err := s.List(ctx, Filter{RepoID: "poky", Limit: 1})
	require.NoError(t, err)
	require.Len(t, poky, 1)
	assert.Equal(t, "run-2", poky[0].RunID)

	run1, err := s.List(ctx, Filter{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, run1, 2)
	assert.Equal(t, ActionDirty, run1[0].Action)
}

func TestStore_RecordValidates(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Record(context.Background(), Entry{RepoID: "poky"}))
	assert.Error(t, s.Record(context.Background(), Entry{RunID: "r"}))
}

func TestStore_RecordDefaultsTimestamp(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	before := time.Now().Add(-time.Second)

	require.NoError(t, s.Record(ctx, Entry{RunID: "r", RepoID: "x", Action: ActionUnmanaged}))
	got, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].At.After(before))
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.sqlite")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, Entry{RunID: "r", RepoID: "x", Revision: "abc"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "abc", got[0].Revision)
}
