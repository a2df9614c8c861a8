package uploadcache

import (
	"context"
	"testing"
	"time"
)

func TestKeyDistinguishesMimeTypes(t *testing.T) {
	data := []byte("identical bytes")
	if Key(data, "text/plain") == Key(data, "application/pdf") {
		t.Fatal("same bytes with different MIME types must not share a key")
	}
	if Key(data, "text/plain") != Key([]byte("identical bytes"), "text/plain") {
		t.Fatal("identical bytes and MIME type must share a key")
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	key := Key([]byte("payload"), "application/pdf")

	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("empty cache: want miss, got ok=%v err=%v", ok, err)
	}

	entry := &Entry{FileURI: "files/abc123", FileName: "files/abc123", MimeType: "application/pdf", StoredAt: time.Now()}
	if err := c.Put(ctx, key, entry, DefaultTTL); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("want hit, got ok=%v err=%v", ok, err)
	}
	if got.FileURI != "files/abc123" {
		t.Fatalf("uri: want=%q got=%q", "files/abc123", got.FileURI)
	}
}

func TestMemoryCacheLazyExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	key := Key([]byte("payload"), "video/mp4")

	now := time.Now()
	c.now = func() time.Time { return now }

	if err := c.Put(ctx, key, &Entry{FileURI: "files/old"}, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	c.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("expired entry: want miss, got ok=%v err=%v", ok, err)
	}

	// Expired entries are evicted on read.
	c.mu.Lock()
	_, still := c.entries[key]
	c.mu.Unlock()
	if still {
		t.Fatal("expired entry should be deleted on read")
	}
}
