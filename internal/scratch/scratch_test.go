package scratch

import (
	"context"
	"testing"
)

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Put(context.Background(), "rounds/r1/data.csv", []byte("a,b\n1,2\n"), "text/csv"); err != nil {
		t.Fatalf("Put() err=%v", err)
	}
	got, err := s.Get(context.Background(), "rounds/r1/data.csv")
	if err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	if string(got) != "a,b\n1,2\n" {
		t.Fatalf("Get()=%q", got)
	}
}

func TestMemoryStore_GetMiss(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "missing"); err == nil {
		t.Fatalf("Get() expected error for missing key")
	}
}

func TestMemoryStore_CopiesData(t *testing.T) {
	s := NewMemoryStore()
	data := []byte("original")
	if err := s.Put(context.Background(), "k", data, ""); err != nil {
		t.Fatalf("Put() err=%v", err)
	}
	data[0] = 'X'
	got, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	if string(got) != "original" {
		t.Fatalf("Get()=%q, caller mutation leaked into store", got)
	}
}
