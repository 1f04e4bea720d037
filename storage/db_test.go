package storage

import (
	"bytes"
	"errors"
	"testing"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	key := []byte("royalty/balance/1")
	value := []byte(`{"pending":"100"}`)

	if _, err := db.Get(key); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected missing key error, got %v", err)
	}

	if err := db.Put(key, value); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("value mismatch: %q", got)
	}

	ok, err := db.Has(key)
	if err != nil || !ok {
		t.Fatalf("has failed: ok=%v err=%v", ok, err)
	}

	if err := db.Delete(key); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := db.Get(key); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("deleted key still readable: %v", err)
	}
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	key := []byte("k")
	value := []byte("original")

	if err := db.Put(key, value); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	value[0] = 'X'

	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("original")) {
		t.Fatalf("stored value aliased caller buffer: %q", got)
	}

	got[0] = 'Y'
	again, err := db.Get(key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !bytes.Equal(again, []byte("original")) {
		t.Fatalf("returned value aliased stored buffer: %q", again)
	}
}
