package sdk_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beanbocchi/nimbus/config"
	"github.com/beanbocchi/nimbus/internal"
	"github.com/beanbocchi/nimbus/pkg/auth"
	"github.com/beanbocchi/nimbus/pkg/httpclient"
	"github.com/beanbocchi/nimbus/pkg/sdk"
)

const testDomain = "nimbus.test"

var tester = auth.Identity{UserName: "tester", AuthKeyID: "1001", AuthKey: "s3cr3t"}

func newEmulator(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Env: "test",
		Log: config.Log{Level: "error", Format: "text"},
		Emulator: config.Emulator{
			Listen:    "127.0.0.1:0",
			Domain:    testDomain,
			DataDir:   dir,
			MaxKeys:   1000,
			ClockSkew: time.Minute,
			Users:     []auth.Identity{tester},
			Blobs:     config.Blobs{Primary: "local"},
		},
	}

	app, err := internal.NewApp(context.Background(), cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(app.Echo)
	t.Cleanup(func() {
		srv.Close()
		require.NoError(t, app.Close())
	})
	return srv
}

func newSDK(t *testing.T, srv *httptest.Server, id auth.Identity) *sdk.Client {
	t.Helper()
	client, err := sdk.NewClient(sdk.Config{
		Endpoint: srv.URL,
		Domain:   testDomain,
		Identity: id,
	})
	require.NoError(t, err)
	return client
}

func newEmulatedBucket(t *testing.T, versioning bool) *sdk.Bucket {
	t.Helper()
	ctx := context.Background()
	client := newSDK(t, newEmulator(t), tester)

	bucket, err := client.CreateBucket(ctx, "bucket-under-test", nil)
	require.NoError(t, err)
	if versioning {
		require.NoError(t, bucket.ConfigureVersioning(ctx, true))
	}
	return bucket
}

func write(t *testing.T, bucket *sdk.Bucket, name, content string) *sdk.Key {
	t.Helper()
	key := bucket.NewKey(name)
	_, err := key.WriteBytes(context.Background(), []byte(content), sdk.WriteOptions{})
	require.NoError(t, err)
	return key
}

func names(entries []sdk.ListEntry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Name())
	}
	return out
}

func TestEmulatorPaginationCompleteness(t *testing.T) {
	ctx := context.Background()
	bucket := newEmulatedBucket(t, false)

	var want []string
	for i := range 11 {
		name := fmt.Sprintf("key-%02d", i)
		want = append(want, name)
	}
	// insertion order must not matter
	for _, i := range []int{7, 2, 10, 0, 5, 9, 1, 3, 8, 6, 4} {
		write(t, bucket, want[i], want[i])
	}

	for _, pageSize := range []int{1, 3, 4, 10} {
		t.Run(fmt.Sprintf("page size %d", pageSize), func(t *testing.T) {
			var got []string
			marker := ""
			for {
				page, err := bucket.ListPage(ctx, sdk.ListParams{MaxKeys: pageSize, Marker: marker})
				require.NoError(t, err)
				require.LessOrEqual(t, page.Len(), pageSize)
				got = append(got, names(page.Entries)...)
				if !page.Truncated {
					break
				}
				last, _ := page.Last()
				marker = last.Name()
			}
			require.Equal(t, want, got)

			rs := bucket.List(sdk.ListParams{MaxKeys: pageSize})
			entries, err := rs.Collect(ctx)
			require.NoError(t, err)
			require.Equal(t, want, names(entries))
		})
	}

	entries, err := bucket.List(sdk.ListParams{Marker: "key-08"}).Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"key-09", "key-10"}, names(entries))
}

func TestEmulatorDelimiterRollup(t *testing.T) {
	ctx := context.Background()
	bucket := newEmulatedBucket(t, false)
	for _, name := range []string{"aaa/b/x", "aaa/b/y", "aaa/e/z", "fff/z"} {
		write(t, bucket, name, name)
	}

	page, err := bucket.ListPage(ctx, sdk.ListParams{Delimiter: "/"})
	require.NoError(t, err)
	require.Equal(t, []string{"aaa/", "fff/"}, names(page.Entries))
	for _, entry := range page.Entries {
		require.IsType(t, &sdk.Prefix{}, entry)
	}

	entries, err := bucket.List(sdk.ListParams{Prefix: "aaa/", Delimiter: "/"}).Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"aaa/b/", "aaa/e/"}, names(entries))

	entries, err = bucket.List(sdk.ListParams{Prefix: "zzz/", Delimiter: "/"}).Collect(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestEmulatorRangeRoundTrip(t *testing.T) {
	ctx := context.Background()
	bucket := newEmulatedBucket(t, false)
	content := "0123456789abcdef"
	key := write(t, bucket, "ranged", content)

	size := int64(len(content))
	for o := int64(0); o < size; o++ {
		for n := int64(1); o+n <= size; n++ {
			data, outcome, err := key.ReadBytes(ctx, sdk.ReadOptions{Slice: sdk.SliceOf(o, n)})
			require.NoError(t, err, "offset %d size %d", o, n)
			require.Equal(t, sdk.Retrieved, outcome)
			require.Equal(t, content[o:o+n], string(data), "offset %d size %d", o, n)
		}
		data, _, err := key.ReadBytes(ctx, sdk.ReadOptions{Slice: sdk.SliceFrom(o)})
		require.NoError(t, err)
		require.Equal(t, content[o:], string(data))
	}

	_, _, err := key.ReadBytes(ctx, sdk.ReadOptions{Slice: sdk.SliceFrom(size)})
	require.True(t, httpclient.HasStatus(err, http.StatusRequestedRangeNotSatisfiable))
}

func TestEmulatorResume(t *testing.T) {
	ctx := context.Background()
	bucket := newEmulatedBucket(t, false)
	content := bytes.Repeat([]byte("resumable content "), 10)
	key := write(t, bucket, "resume", string(content))

	for k := 0; k <= len(content); k++ {
		sink := bytes.NewBuffer(append([]byte(nil), content[:k]...))
		_, err := key.ResumeFrom(ctx, sink, int64(k), sdk.ReadOptions{})
		require.NoError(t, err, "written %d", k)
		require.Equal(t, content, sink.Bytes(), "written %d", k)
	}

	path := filepath.Join(t.TempDir(), "partial")
	require.NoError(t, os.WriteFile(path, content[:37], 0o644))
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = key.Resume(ctx, f, sdk.ReadOptions{})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, content, got)

	// within a slice
	sink := bytes.NewBufferString(string(content[10:15]))
	_, err = key.ResumeFrom(ctx, sink, 5, sdk.ReadOptions{Slice: sdk.SliceOf(10, 20)})
	require.NoError(t, err)
	require.Equal(t, string(content[10:30]), sink.String())
}

func TestEmulatorVersionRoundTrip(t *testing.T) {
	ctx := context.Background()
	bucket := newEmulatedBucket(t, true)

	contents := []string{"first", "second", "third"}
	var ids []string
	for _, content := range contents {
		key := write(t, bucket, "versioned", content)
		ids = append(ids, key.VersionID())
	}

	entries, err := bucket.ListVersions(sdk.VersionListParams{}).Collect(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		key := entry.(*sdk.Key)
		require.Equal(t, "versioned", key.Name())
		require.Equal(t, ids[len(ids)-1-i], key.VersionID())
	}

	for i, id := range ids {
		data, _, err := bucket.GetKey("versioned", id).ReadBytes(ctx, sdk.ReadOptions{VersionID: id})
		require.NoError(t, err)
		require.Equal(t, contents[i], string(data))
	}

	// paging by compound marker yields the same sequence
	paged, err := bucket.ListVersions(sdk.VersionListParams{MaxKeys: 1}).Collect(ctx)
	require.NoError(t, err)
	require.Len(t, paged, 3)
	for i := range paged {
		require.Equal(t, entries[i].(*sdk.Key).VersionID(), paged[i].(*sdk.Key).VersionID())
	}

	// the latest listing only shows the newest version
	latest, err := bucket.List(sdk.ListParams{}).Collect(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, ids[2], latest[0].(*sdk.Key).VersionID())
}

func TestEmulatorConditionalSemantics(t *testing.T) {
	ctx := context.Background()
	bucket := newEmulatedBucket(t, false)
	key := write(t, bucket, "conditional", "payload")

	modified := key.LastModified()
	require.False(t, modified.IsZero())

	tests := []struct {
		name string
		cond sdk.Condition
		want bool
	}{
		{"modified since later", sdk.ModifiedSince(modified.Add(time.Second)), false},
		{"modified since earlier", sdk.ModifiedSince(modified.Add(-time.Second)), true},
		{"unmodified since earlier", sdk.UnmodifiedSince(modified.Add(-time.Second)), false},
		{"unmodified since later", sdk.UnmodifiedSince(modified.Add(time.Second)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, err := key.Exists(ctx, tt.cond)
			require.NoError(t, err)
			require.Equal(t, tt.want, exists)
		})
	}

	_, outcome, err := key.ReadBytes(ctx, sdk.ReadOptions{Condition: sdk.ModifiedSince(modified.Add(time.Second))})
	require.NoError(t, err)
	require.Equal(t, sdk.Unchanged, outcome)

	_, outcome, err = key.ReadBytes(ctx, sdk.ReadOptions{Condition: sdk.UnmodifiedSince(modified.Add(-time.Second))})
	require.NoError(t, err)
	require.Equal(t, sdk.Changed, outcome)

	data, outcome, err := key.ReadBytes(ctx, sdk.ReadOptions{Condition: sdk.ModifiedSince(modified.Add(-time.Second))})
	require.NoError(t, err)
	require.Equal(t, sdk.Retrieved, outcome)
	require.Equal(t, "payload", string(data))

	exists, err := bucket.NewKey("absent").Exists(ctx, sdk.Condition{})
	require.NoError(t, err)
	require.False(t, exists)
}

func TestEmulatorMetadataNotCarriedAcrossOverwrite(t *testing.T) {
	ctx := context.Background()
	bucket := newEmulatedBucket(t, false)

	first := bucket.NewKey("meta")
	first.SetMetadata("a", "b")
	_, err := first.WriteBytes(ctx, []byte("one"), sdk.WriteOptions{})
	require.NoError(t, err)

	value, err := bucket.NewKey("meta").Metadata(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, "b", value.ValueOrZero())

	_, err = bucket.NewKey("meta").WriteBytes(ctx, []byte("two"), sdk.WriteOptions{})
	require.NoError(t, err)

	value, err = bucket.NewKey("meta").Metadata(ctx, "a")
	require.NoError(t, err)
	require.False(t, value.Valid)

	value, err = bucket.NewKey("never-written").Metadata(ctx, "a")
	require.NoError(t, err)
	require.False(t, value.Valid)
}

func TestEmulatorEndToEnd(t *testing.T) {
	ctx := context.Background()
	client := newSDK(t, newEmulator(t), tester)

	bucket, err := client.CreateBucket(ctx, "e2e-bucket", nil)
	require.NoError(t, err)

	for _, name := range []string{"x/1", "x/2", "y/1"} {
		write(t, bucket, name, name)
	}

	page, err := bucket.ListPage(ctx, sdk.ListParams{Prefix: "x/"})
	require.NoError(t, err)
	require.Equal(t, 2, page.Len())
	require.False(t, page.Truncated)

	page, err = bucket.ListPage(ctx, sdk.ListParams{Delimiter: "/"})
	require.NoError(t, err)
	require.Equal(t, []string{"x/", "y/"}, names(page.Entries))

	// a non-empty collection cannot be removed
	err = client.DeleteBucket(ctx, "e2e-bucket")
	require.True(t, httpclient.HasStatus(err, http.StatusConflict))

	for _, name := range []string{"x/1", "x/2", "y/1"} {
		require.NoError(t, bucket.NewKey(name).Delete(ctx, ""))
	}
	require.NoError(t, client.DeleteBucket(ctx, "/e2e-bucket"))

	buckets, err := client.GetAllBuckets(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	require.Equal(t, "dd-tester", buckets[0].Name())
}

func TestEmulatorMultipartUpload(t *testing.T) {
	ctx := context.Background()
	bucket := newEmulatedBucket(t, false)

	upload, err := bucket.InitiateMultipartUpload(ctx, "assembled")
	require.NoError(t, err)
	require.NotEmpty(t, upload.ID())
	require.False(t, upload.CreateTimestamp.IsZero())

	_, err = upload.UploadPart(ctx, 2, bytes.NewReader([]byte("world")), sdk.WriteOptions{})
	require.NoError(t, err)
	_, err = upload.UploadPart(ctx, 1, bytes.NewReader([]byte("hello ")), sdk.WriteOptions{})
	require.NoError(t, err)

	abandoned, err := bucket.InitiateMultipartUpload(ctx, "abandoned")
	require.NoError(t, err)

	uploads, err := bucket.ListUploads(sdk.UploadListParams{MaxUploads: 1}).Collect(ctx)
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	require.Equal(t, "abandoned", uploads[0].KeyName())
	require.Equal(t, "assembled", uploads[1].KeyName())

	require.NoError(t, upload.Complete(ctx))
	require.NoError(t, abandoned.Cancel(ctx))

	data, _, err := bucket.NewKey("assembled").ReadBytes(ctx, sdk.ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))

	uploads, err = bucket.ListUploads(sdk.UploadListParams{}).Collect(ctx)
	require.NoError(t, err)
	require.Empty(t, uploads)

	err = abandoned.Complete(ctx)
	require.True(t, httpclient.HasStatus(err, http.StatusConflict))
}

func TestEmulatorDeleteMarker(t *testing.T) {
	ctx := context.Background()
	bucket := newEmulatedBucket(t, true)

	first := write(t, bucket, "doc", "v1")
	write(t, bucket, "doc", "v2")
	require.NoError(t, bucket.NewKey("doc").Delete(ctx, ""))

	exists, err := bucket.NewKey("doc").Exists(ctx, sdk.Condition{})
	require.NoError(t, err)
	require.False(t, exists)

	versions, err := bucket.ListVersions(sdk.VersionListParams{}).Collect(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	data, _, err := bucket.NewKey("doc").ReadBytes(ctx, sdk.ReadOptions{VersionID: first.VersionID()})
	require.NoError(t, err)
	require.Equal(t, "v1", string(data))

	require.NoError(t, bucket.NewKey("doc").Delete(ctx, first.VersionID()))
	_, _, err = bucket.NewKey("doc").ReadBytes(ctx, sdk.ReadOptions{VersionID: first.VersionID()})
	require.True(t, httpclient.HasStatus(err, http.StatusNotFound))
}

func TestEmulatorCollections(t *testing.T) {
	ctx := context.Background()
	srv := newEmulator(t)
	client := newSDK(t, srv, tester)

	_, err := client.CreateBucket(ctx, "Not_Valid", nil)
	require.True(t, httpclient.HasStatus(err, http.StatusBadRequest))

	bucket, err := client.CreateBucket(ctx, "with-acl", []byte(`{"version":1}`))
	require.NoError(t, err)
	_, err = client.CreateBucket(ctx, "with-acl", nil)
	require.True(t, httpclient.HasStatus(err, http.StatusConflict))

	doc, err := bucket.ConfigureAccessControl(ctx, []byte(`{"read":["anyone"]}`))
	require.NoError(t, err)
	require.Equal(t, []any{"anyone"}, doc["read"])

	write(t, bucket, "a", "12345")
	usage, err := bucket.SpaceUsed(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, usage.KeyCount)
	require.EqualValues(t, 5, usage.BytesStored)

	err = client.DeleteBucket(ctx, client.DefaultBucket().Name())
	require.True(t, httpclient.HasStatus(err, http.StatusForbidden))

	unique, err := client.CreateUniqueBucket(ctx, nil)
	require.NoError(t, err)
	require.Contains(t, unique.Name(), "rr-tester-")

	all, err := client.GetAllBuckets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	impostor := newSDK(t, srv, auth.Identity{UserName: "tester", AuthKeyID: "1001", AuthKey: "wrong"})
	_, err = impostor.GetAllBuckets(ctx)
	require.True(t, httpclient.HasStatus(err, http.StatusUnauthorized))
}
