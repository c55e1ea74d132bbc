package mongostore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestOpen_EmptyURIDisabled(t *testing.T) {
	s, err := Open(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Enabled() {
		t.Fatal("store without uri should be disabled")
	}
	if s.Database() != DefaultDatabase || s.CollectionName() != DefaultCollection {
		t.Errorf("names = %q/%q", s.Database(), s.CollectionName())
	}
	if s.Collection() != nil {
		t.Error("Collection() should be nil when disabled")
	}
	if err := s.Ping(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("Ping = %v, want ErrDisabled", err)
	}
	if err := s.Disconnect(context.Background()); err != nil {
		t.Errorf("Disconnect on disabled store: %v", err)
	}
}

func TestOpen_InvalidURIDoesNotLeak(t *testing.T) {
	_, err := Open(context.Background(), Options{URI: "mongodb://user:hunter2@"})
	if err == nil {
		t.Fatal("expected error for uri without host")
	}
	if strings.Contains(err.Error(), "hunter2") {
		t.Fatalf("error leaked credentials: %v", err)
	}
}

func TestOpen_LazyClient(t *testing.T) {
	ctx := context.Background()
	// nothing listens on port 1; construction must still succeed
	s, err := Open(ctx, Options{
		URI:         "mongodb://127.0.0.1:1/?connectTimeoutMS=200",
		Database:    "dsa_test",
		Collection:  "things",
		OnPoolEvent: func(string) {},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Disconnect(ctx)

	if !s.Enabled() {
		t.Fatal("store with uri should be enabled")
	}
	coll := s.Collection()
	if coll == nil || coll.Name() != "things" || coll.Database().Name() != "dsa_test" {
		t.Fatalf("collection = %v", coll)
	}

	pctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := s.Ping(pctx); err == nil {
		t.Fatal("Ping against closed port should fail")
	}
}

func TestNilStore(t *testing.T) {
	var s *Store
	if s.Enabled() {
		t.Fatal("nil store reports enabled")
	}
	if err := s.Ping(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Ping = %v", err)
	}
}
