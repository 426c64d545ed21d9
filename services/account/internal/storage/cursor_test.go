package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	id := uuid.New()

	cursor := encodeCursor(ts, id)
	gotTS, gotID, err := decodeCursor(cursor)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	if !gotTS.Equal(ts) {
		t.Fatalf("expected ts %v, got %v", ts, gotTS)
	}
	if gotID != id {
		t.Fatalf("expected id %s, got %s", id, gotID)
	}
}

func TestDecodeCursorInvalid(t *testing.T) {
	for _, cursor := range []string{"not-base64!", "bm9waXBl", encodeCursor(time.Now(), uuid.New())[:10]} {
		if _, _, err := decodeCursor(cursor); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("cursor %q: expected ErrInvalidCursor, got %v", cursor, err)
		}
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{0: 50, -3: 50, 10: 10, 200: 200, 5000: 200}
	for in, want := range cases {
		if got := clampLimit(in); got != want {
			t.Fatalf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
