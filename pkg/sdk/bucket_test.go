package sdk

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beanbocchi/nimbus/pkg/auth"
)

func TestBucketListPage(t *testing.T) {
	ctx := context.Background()

	t.Run("keys", func(t *testing.T) {
		rec := &recorder{body: `{"key_data":[{"key":"a","version_identifier":"v1","timestamp":"Mon, 02 Jan 2006 15:04:05 GMT"},{"key":"b","version_identifier":"v2"}],"truncated":true}`}
		page, err := newTestBucket(t, rec).ListPage(ctx, ListParams{Prefix: "a", Marker: "0"})
		require.NoError(t, err)
		require.True(t, page.Truncated)
		require.Equal(t, 2, page.Len())

		first := page.Entries[0].(*Key)
		require.Equal(t, "a", first.Name())
		require.Equal(t, "v1", first.VersionID())
		require.Equal(t, 2006, first.LastModified().Year())
		require.Equal(t, "/data/?marker=0&max_keys=1000&prefix=a", rec.last().URI)
		require.Equal(t, "bucket-1.nimbus.test", rec.last().Host)
	})

	t.Run("prefixes", func(t *testing.T) {
		rec := &recorder{body: `{"prefixes":["aaa/","bbb/"],"truncated":false}`}
		page, err := newTestBucket(t, rec).ListPage(ctx, ListParams{Delimiter: "/", MaxKeys: 10})
		require.NoError(t, err)
		require.Len(t, page.Entries, 2)
		prefix, ok := page.Entries[1].(*Prefix)
		require.True(t, ok)
		require.Equal(t, "bbb/", prefix.Name())
		require.Equal(t, "/data/?delimiter=%2F&max_keys=10", rec.last().URI)
	})

	t.Run("empty keys", func(t *testing.T) {
		rec := &recorder{body: `{"key_data":[],"truncated":false}`}
		page, err := newTestBucket(t, rec).ListPage(ctx, ListParams{})
		require.NoError(t, err)
		require.Zero(t, page.Len())
	})

	t.Run("neither keys nor prefixes", func(t *testing.T) {
		rec := &recorder{body: `{"truncated":false}`}
		_, err := newTestBucket(t, rec).ListPage(ctx, ListParams{})
		require.ErrorIs(t, err, ErrUnexpectedListing)
	})

	t.Run("invalid params", func(t *testing.T) {
		rec := &recorder{}
		_, err := newTestBucket(t, rec).ListPage(ctx, ListParams{MaxKeys: 1001})
		require.ErrorIs(t, err, ErrInvalidListParams)
		require.ErrorIs(t, err, ErrPrecondition)

		_, err = newTestBucket(t, rec).ListVersionsPage(ctx, VersionListParams{VersionIDMarker: "v1"})
		require.ErrorIs(t, err, ErrInvalidListParams)
		require.Empty(t, rec.requests)
	})
}

func TestBucketListFollowsMarkers(t *testing.T) {
	rec := &recorder{replies: []string{
		`{"key_data":[{"key":"a","version_identifier":"1"},{"key":"b","version_identifier":"2"}],"truncated":true}`,
		`{"key_data":[{"key":"c","version_identifier":"3"}],"truncated":false}`,
	}}

	entries, err := newTestBucket(t, rec).List(ListParams{MaxKeys: 2, Prefix: "p"}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Len(t, rec.requests, 2)
	require.Equal(t, "/data/?max_keys=2&prefix=p", rec.requests[0].URI)
	require.Equal(t, "/data/?marker=b&max_keys=2&prefix=p", rec.requests[1].URI)
}

func TestBucketListVersionsCompoundMarker(t *testing.T) {
	rec := &recorder{replies: []string{
		`{"key_data":[{"key":"a","version_identifier":"v2"},{"key":"a","version_identifier":"v1"}],"truncated":true}`,
		`{"key_data":[],"truncated":true}`,
	}}

	entries, err := newTestBucket(t, rec).ListVersions(VersionListParams{MaxKeys: 2}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Len(t, rec.requests, 2)
	require.Equal(t, "/?key_marker=a&max_keys=2&version_id_marker=v1&versions=true", rec.requests[1].URI)
}

func TestBucketListUploads(t *testing.T) {
	rec := &recorder{replies: []string{
		`{"conjoined_list":[{"conjoined_identifier":"u1","key":"k","create_timestamp":"Mon, 02 Jan 2006 15:04:05 GMT"}],"truncated":true}`,
		`{"conjoined_list":[],"truncated":false}`,
	}}

	uploads, err := newTestBucket(t, rec).ListUploads(UploadListParams{MaxUploads: 1}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	require.Equal(t, "u1", uploads[0].ID())
	require.Equal(t, "k", uploads[0].KeyName())
	require.False(t, uploads[0].CompleteTimestamp.Valid)
	require.Equal(t, "/conjoined/?conjoined_identifier_marker=u1&key_marker=k&max_conjoined=1", rec.requests[1].URI)
}

func TestClientAccountRequests(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2012, time.May, 6, 7, 8, 9, 123456000, time.UTC)

	rec := &recorder{status: http.StatusCreated, body: `{"name":"rr-tester-20120506070809123456","versioning":false}`}
	client, err := NewClient(Config{
		Domain:   "nimbus.test",
		Identity: auth.Identity{UserName: "tester", AuthKeyID: "1", AuthKey: "secret"},
	}, WithTransport(rec), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	require.Equal(t, "dd-tester", client.DefaultBucket().Name())

	bucket, err := client.CreateUniqueBucket(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, "rr-tester-20120506070809123456", bucket.Name())
	require.Equal(t, "nimbus.test", rec.last().Host)
	require.Equal(t, "/customers/tester/collections?action=create&name=rr-tester-20120506070809123456", rec.last().URI)

	rec.status = http.StatusOK
	require.NoError(t, client.DeleteBucket(ctx, "/old"))
	require.Equal(t, "/customers/tester/collections/old", rec.last().URI)
	require.Equal(t, http.MethodDelete, rec.last().Method)

	rec.body = `[{"name":"dd-tester","versioning":true},{"name":"other","versioning":false}]`
	buckets, err := client.GetAllBuckets(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	require.True(t, buckets[0].Versioning())
}
