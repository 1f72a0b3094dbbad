package cache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/gqlpipe/internal/config"
)

// fakeBucket serves the handful of S3 calls the store makes: bucket HEAD,
// ListObjectsV2 and DeleteObject. Deletes are refused.
type fakeBucket struct {
	name    string
	objects map[string]int64

	mu      sync.Mutex
	deletes int
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		if _, ok := r.URL.Query()["location"]; ok {
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
			return
		}

		b.list(w)
	case http.MethodDelete:
		b.mu.Lock()
		b.deletes++
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message><BucketName>%s</BucketName><Key>%s</Key><RequestId>1</RequestId></Error>`,
			b.name, strings.TrimPrefix(r.URL.Path, "/"+b.name+"/"))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (b *fakeBucket) list(w http.ResponseWriter) {
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var contents strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&contents, `<Contents><Key>%s</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>"0"</ETag><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>`, k, b.objects[k])
	}

	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>%s</Name><Prefix></Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>%s</ListBucketResult>`,
		b.name, len(keys), contents.String())
}

func newFakeS3Store(t *testing.T, bucket *fakeBucket) *S3Store {
	t.Helper()

	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	store, err := NewS3Store(config.S3Config{
		Endpoint:  u.Host,
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    bucket.name,
	})
	require.NoError(t, err)

	return store
}

func listingGoroutines() int {
	buf := make([]byte, 1<<20)
	buf = buf[:runtime.Stack(buf, true)]
	return strings.Count(string(buf), "minio-go/v7.(*Client).ListObjects.func")
}

func sampleObjects() map[string]int64 {
	return map[string]int64{
		"dev/api-0123456789ab/server/inputs.json":  100,
		"dev/api-0123456789ab/server/outputs.json": 200,
		"dev/web-0123456789ab/client/inputs.json":  10,
		"dev/web-0123456789ab/client/outputs.json": 20,
		"dev/app-0123456789ab/client/inputs.json":  1,
		"dev/app-0123456789ab/client/outputs.json": 2,
	}
}

func TestS3Store_Stats(t *testing.T) {
	store := newFakeS3Store(t, &fakeBucket{name: "cache", objects: sampleObjects()})

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, int64(333), stats.Size)
}

func TestS3Store_ClearStopsListingOnError(t *testing.T) {
	bucket := &fakeBucket{name: "cache", objects: sampleObjects()}
	store := newFakeS3Store(t, bucket)

	err := store.Clear(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to remove")

	bucket.mu.Lock()
	assert.Equal(t, 1, bucket.deletes, "the first refused delete ends the walk")
	bucket.mu.Unlock()

	assert.Eventually(t, func() bool { return listingGoroutines() == 0 },
		2*time.Second, 10*time.Millisecond, "the object listing is released")
}
