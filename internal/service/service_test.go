package service

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/require"

	"github.com/beanbocchi/nimbus/config"
	"github.com/beanbocchi/nimbus/internal/client/objectstore"
	"github.com/beanbocchi/nimbus/internal/db"
	"github.com/beanbocchi/nimbus/internal/model"
)

const owner = "alice"

// steppedClock advances one second on every reading.
type steppedClock struct {
	now time.Time
}

func (c *steppedClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(t *testing.T) (*Service, *steppedClock) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	cfg := &config.Config{Emulator: config.Emulator{
		DataDir: dir,
		MaxKeys: 1000,
		Blobs:   config.Blobs{Primary: "local"},
	}}
	clock := &steppedClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc, err := NewService(context.Background(), cfg, conn, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, svc.Close())
		conn.Close()
	})
	return svc, clock
}

func newCollection(t *testing.T, svc *Service, name string, versioning bool) {
	t.Helper()
	_, err := svc.CreateCollection(context.Background(), CreateCollectionParams{
		Owner:      owner,
		Name:       name,
		Versioning: versioning,
	})
	require.NoError(t, err)
}

func archive(t *testing.T, svc *Service, collection, key, content string) ArchiveResult {
	t.Helper()
	result, err := svc.Archive(context.Background(), ArchiveParams{
		Owner:      owner,
		Collection: collection,
		Key:        key,
		Body:       strings.NewReader(content),
	})
	require.NoError(t, err)
	return result
}

func retrieve(t *testing.T, svc *Service, params RetrieveParams) string {
	t.Helper()
	r, err := svc.Retrieve(context.Background(), params)
	require.NoError(t, err)
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	return string(data)
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		header  string
		size    int64
		offset  int64
		length  int64
		partial bool
		wantErr bool
	}{
		{header: "", size: 10, offset: 0, length: 10},
		{header: "bytes=0-", size: 10, offset: 0, length: 10, partial: true},
		{header: "bytes=2-5", size: 10, offset: 2, length: 4, partial: true},
		{header: "bytes=9-9", size: 10, offset: 9, length: 1, partial: true},
		{header: "bytes=4-100", size: 10, offset: 4, length: 6, partial: true},
		{header: "bytes=-3", size: 10, offset: 7, length: 3, partial: true},
		{header: "bytes=-30", size: 10, offset: 0, length: 10, partial: true},
		{header: "bytes=10-", size: 10, wantErr: true},
		{header: "bytes=5-2", size: 10, wantErr: true},
		{header: "bytes=0-1,4-5", size: 10, wantErr: true},
		{header: "items=0-1", size: 10, wantErr: true},
		{header: "bytes=-0", size: 10, wantErr: true},
		{header: "bytes=0-", size: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			offset, length, partial, err := ParseRange(tt.header, tt.size)
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.offset, offset)
			require.Equal(t, tt.length, length)
			require.Equal(t, tt.partial, partial)
		})
	}
}

func TestRollup(t *testing.T) {
	names := []string{"aaa/b/x", "aaa/b/y", "aaa/e/z", "fff/z", "top"}

	require.Equal(t, []string{"aaa/", "fff/", "top"}, Rollup(names, "", "/"))
	require.Equal(t, []string{"aaa/b/", "aaa/e/"}, Rollup(names, "aaa/", "/"))
	require.Empty(t, Rollup(names, "zzz/", "/"))
}

func TestCollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.EnsureCollection(ctx, owner, DefaultCollection(owner))
	require.NoError(t, err)
	_, err = svc.EnsureCollection(ctx, owner, DefaultCollection(owner))
	require.NoError(t, err)

	_, err = svc.CreateCollection(ctx, CreateCollectionParams{Owner: owner, Name: "Bad_Name"})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.CreateCollection(ctx, CreateCollectionParams{Owner: owner, Name: "docs", AccessControl: []byte("{not json")})
	require.ErrorIs(t, err, model.ErrValidation)

	newCollection(t, svc, "docs", false)
	_, err = svc.CreateCollection(ctx, CreateCollectionParams{Owner: owner, Name: "docs"})
	require.ErrorIs(t, err, model.ErrCollectionExists)

	// other users see someone else's collection as missing
	_, err = svc.Collection(ctx, "mallory", "docs")
	require.ErrorIs(t, err, model.ErrCollectionNotFound)

	collections, err := svc.ListCollections(ctx, owner)
	require.NoError(t, err)
	require.Len(t, collections, 2)

	versioning := true
	updated, err := svc.UpdateCollection(ctx, UpdateCollectionParams{
		Owner:         owner,
		Name:          "docs",
		Versioning:    &versioning,
		AccessControl: []byte(`{"read":true}`),
	})
	require.NoError(t, err)
	require.True(t, updated.Versioning)
	require.Equal(t, `{"read":true}`, updated.AccessControl.String)

	archive(t, svc, "docs", "readme", "hello")
	usage, err := svc.SpaceUsage(ctx, owner, "docs")
	require.NoError(t, err)
	require.EqualValues(t, 1, usage.KeyCount)
	require.EqualValues(t, 5, usage.BytesStored)

	err = svc.DeleteCollection(ctx, DeleteCollectionParams{Owner: owner, Name: "docs"})
	require.ErrorIs(t, err, model.ErrCollectionNotEmpty)

	err = svc.DeleteCollection(ctx, DeleteCollectionParams{Owner: owner, Name: DefaultCollection(owner)})
	require.ErrorIs(t, err, model.ErrCollectionReserved)

	require.NoError(t, svc.DeleteKey(ctx, KeyParams{Owner: owner, Collection: "docs", Key: "readme"}))
	versions, err := svc.ListVersions(ctx, ListVersionsParams{Owner: owner, Collection: "docs"})
	require.NoError(t, err)
	require.Len(t, versions.Versions, 1)

	require.NoError(t, svc.DeleteKey(ctx, KeyParams{Owner: owner, Collection: "docs", Key: "readme", VersionID: versions.Versions[0].ID}))
	require.NoError(t, svc.DeleteCollection(ctx, DeleteCollectionParams{Owner: owner, Name: "docs"}))

	_, err = svc.Collection(ctx, owner, "docs")
	require.ErrorIs(t, err, model.ErrCollectionNotFound)
}

func TestArchiveUnversionedReplaces(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	newCollection(t, svc, "plain", false)

	first := archive(t, svc, "plain", "doc", "one")
	second := archive(t, svc, "plain", "doc", "two")
	require.NotEqual(t, first.VersionID, second.VersionID)
	require.EqualValues(t, 3, second.Size)
	require.Len(t, second.Digest, 64)

	listing, err := svc.ListVersions(ctx, ListVersionsParams{Owner: owner, Collection: "plain"})
	require.NoError(t, err)
	require.Len(t, listing.Versions, 1)
	require.Equal(t, second.VersionID, listing.Versions[0].ID)

	_, err = svc.Retrieve(ctx, RetrieveParams{KeyParams: KeyParams{Owner: owner, Collection: "plain", Key: "doc", VersionID: first.VersionID}})
	require.ErrorIs(t, err, model.ErrVersionNotFound)

	// superseded blobs are removed in the background
	require.NoError(t, svc.Close())
	_, err = svc.blobs.Download(ctx, versionBlobKey("plain", first.VersionID))
	require.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestArchiveMetadata(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	newCollection(t, svc, "meta", false)

	_, err := svc.Archive(ctx, ArchiveParams{
		Owner:      owner,
		Collection: "meta",
		Key:        "doc",
		Body:       strings.NewReader("x"),
		Metadata:   map[string]string{"Color": "blue"},
	})
	require.NoError(t, err)

	meta, err := svc.Metadata(ctx, KeyParams{Owner: owner, Collection: "meta", Key: "doc"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"color": "blue"}, meta)

	archive(t, svc, "meta", "doc", "y")
	meta, err = svc.Metadata(ctx, KeyParams{Owner: owner, Collection: "meta", Key: "doc"})
	require.NoError(t, err)
	require.Empty(t, meta)

	_, err = svc.Metadata(ctx, KeyParams{Owner: owner, Collection: "meta", Key: "missing"})
	require.ErrorIs(t, err, model.ErrKeyNotFound)
}

func TestRetrieveRangesAndConditions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	newCollection(t, svc, "ranges", false)

	result := archive(t, svc, "ranges", "digits", "0123456789")
	key := KeyParams{Owner: owner, Collection: "ranges", Key: "digits"}

	require.Equal(t, "0123456789", retrieve(t, svc, RetrieveParams{KeyParams: key}))
	require.Equal(t, "234", retrieve(t, svc, RetrieveParams{KeyParams: key, Range: "bytes=2-4"}))
	require.Equal(t, "789", retrieve(t, svc, RetrieveParams{KeyParams: key, Range: "bytes=-3"}))

	_, err := svc.Retrieve(ctx, RetrieveParams{KeyParams: key, Range: "bytes=10-"})
	require.ErrorIs(t, err, model.ErrInvalidRange)

	modified := result.LastModified
	_, err = svc.Stat(ctx, RetrieveParams{KeyParams: key, IfModifiedSince: null.TimeFrom(modified)})
	require.ErrorIs(t, err, model.ErrNotModified)
	_, err = svc.Stat(ctx, RetrieveParams{KeyParams: key, IfModifiedSince: null.TimeFrom(modified.Add(-time.Second))})
	require.NoError(t, err)

	_, err = svc.Stat(ctx, RetrieveParams{KeyParams: key, IfUnmodifiedSince: null.TimeFrom(modified.Add(-time.Second))})
	require.ErrorIs(t, err, model.ErrPreconditionFailed)
	_, err = svc.Stat(ctx, RetrieveParams{KeyParams: key, IfUnmodifiedSince: null.TimeFrom(modified)})
	require.NoError(t, err)
}

func TestVersionedDeleteMarker(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	newCollection(t, svc, "history", true)

	first := archive(t, svc, "history", "doc", "v1")
	archive(t, svc, "history", "doc", "v2")

	key := KeyParams{Owner: owner, Collection: "history", Key: "doc"}
	require.NoError(t, svc.DeleteKey(ctx, key))

	_, err := svc.Stat(ctx, RetrieveParams{KeyParams: key})
	require.ErrorIs(t, err, model.ErrKeyNotFound)
	require.ErrorIs(t, svc.DeleteKey(ctx, key), model.ErrKeyNotFound)

	key.VersionID = first.VersionID
	require.Equal(t, "v1", retrieve(t, svc, RetrieveParams{KeyParams: key}))

	latest, err := svc.ListKeys(ctx, ListKeysParams{Owner: owner, Collection: "history"})
	require.NoError(t, err)
	require.Empty(t, latest.Versions)
}

func TestListKeysPagination(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	newCollection(t, svc, "paged", false)

	for _, name := range []string{"d", "b", "e", "a", "c"} {
		archive(t, svc, "paged", name, name)
	}

	var got []string
	marker := null.String{}
	for {
		listing, err := svc.ListKeys(ctx, ListKeysParams{
			Owner:            owner,
			Collection:       "paged",
			PaginationParams: model.PaginationParams{Marker: marker, MaxKeys: 2},
		})
		require.NoError(t, err)
		require.LessOrEqual(t, len(listing.Versions), 2)
		for _, v := range listing.Versions {
			got = append(got, v.Key)
		}
		if !listing.Truncated {
			break
		}
		marker = null.StringFrom(listing.Versions[len(listing.Versions)-1].Key)
	}
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, got)

	rollup, err := svc.ListKeys(ctx, ListKeysParams{
		Owner:            owner,
		Collection:       "paged",
		PaginationParams: model.PaginationParams{Delimiter: null.StringFrom("/")},
	})
	require.NoError(t, err)
	require.True(t, rollup.Rollup)
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, rollup.Prefixes)
}

func TestConjoinedLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	newCollection(t, svc, "uploads", false)

	params := ConjoinedParams{Owner: owner, Collection: "uploads", Key: "big"}
	started, err := svc.StartConjoined(ctx, params)
	require.NoError(t, err)
	params.ConjoinedID = started.ID

	for part, content := range map[int64]string{3: "!", 1: "hello ", 2: "world"} {
		result, err := svc.Archive(ctx, ArchiveParams{
			Owner:       owner,
			Collection:  "uploads",
			Key:         "big",
			Body:        strings.NewReader(content),
			ConjoinedID: started.ID,
			Part:        part,
		})
		require.NoError(t, err)
		require.Equal(t, started.ID, result.VersionID)
	}

	_, err = svc.Archive(ctx, ArchiveParams{
		Owner:       owner,
		Collection:  "uploads",
		Key:         "other",
		Body:        bytes.NewReader(nil),
		ConjoinedID: started.ID,
		Part:        1,
	})
	require.ErrorIs(t, err, model.ErrUploadNotFound)

	active, err := svc.ListConjoined(ctx, ListConjoinedParams{Owner: owner, Collection: "uploads"})
	require.NoError(t, err)
	require.Len(t, active.Data, 1)

	finished, err := svc.FinishConjoined(ctx, params)
	require.NoError(t, err)
	require.True(t, finished.CompletedAt.Valid)

	got := retrieve(t, svc, RetrieveParams{KeyParams: KeyParams{Owner: owner, Collection: "uploads", Key: "big"}})
	require.Equal(t, "hello world!", got)

	stat, err := svc.Stat(ctx, RetrieveParams{KeyParams: KeyParams{Owner: owner, Collection: "uploads", Key: "big"}})
	require.NoError(t, err)
	require.Equal(t, started.ID, stat.ID)

	_, err = svc.FinishConjoined(ctx, params)
	require.ErrorIs(t, err, model.ErrUploadClosed)
	_, err = svc.AbortConjoined(ctx, params)
	require.ErrorIs(t, err, model.ErrUploadClosed)

	active, err = svc.ListConjoined(ctx, ListConjoinedParams{Owner: owner, Collection: "uploads"})
	require.NoError(t, err)
	require.Empty(t, active.Data)
}

func TestConjoinedAbort(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	newCollection(t, svc, "uploads", false)

	params := ConjoinedParams{Owner: owner, Collection: "uploads", Key: "big"}
	started, err := svc.StartConjoined(ctx, params)
	require.NoError(t, err)
	params.ConjoinedID = started.ID

	_, err = svc.Archive(ctx, ArchiveParams{
		Owner:       owner,
		Collection:  "uploads",
		Key:         "big",
		Body:        strings.NewReader("part"),
		ConjoinedID: started.ID,
		Part:        1,
	})
	require.NoError(t, err)

	aborted, err := svc.AbortConjoined(ctx, params)
	require.NoError(t, err)
	require.True(t, aborted.AbortedAt.Valid)

	_, err = svc.Stat(ctx, RetrieveParams{KeyParams: KeyParams{Owner: owner, Collection: "uploads", Key: "big"}})
	require.ErrorIs(t, err, model.ErrKeyNotFound)

	require.NoError(t, svc.Close())
	_, err = svc.blobs.Download(ctx, partBlobKey("uploads", started.ID, 1))
	require.ErrorIs(t, err, objectstore.ErrNotFound)
}
