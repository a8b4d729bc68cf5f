package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"testing"
	"time"
)

func Test_bodyHash(t *testing.T) {
	data := []byte("hello world")
	sum := sha256.Sum256(data)
	if got, want := bodyHash(data), hex.EncodeToString(sum[:]); got != want {
		t.Fatalf("bodyHash mismatch: got %s want %s", got, want)
	}
}

func Test_nowUTC(t *testing.T) {
	u := nowUTC()
	if u.Location() != time.UTC {
		t.Fatalf("nowUTC must be UTC, got %v", u.Location())
	}
	if d := time.Since(u); d < 0 || d > 2*time.Second {
		t.Fatalf("nowUTC too far from now: %v", d)
	}
}

func Test_buildKey(t *testing.T) {
	k := buildKey("POST", "/groups/G1/loans/L1/repayments", "U1", strings.Repeat("a", 32))
	want := "idemp:vb:post:/groups/G1/loans/L1/repayments:U1:" + strings.Repeat("a", 32)
	if k != want {
		t.Fatalf("buildKey = %q, want %q", k, want)
	}
}

func Test_validReqID(t *testing.T) {
	t.Run("accepts uuid and 32-hex", func(t *testing.T) {
		valid := []string{
			"3f9a6a1b-3d54-4fbe-8b3a-6b3e8d6b2c88", // v4
			"0190f2a4-7c1e-7b3a-9c2d-5e6f7a8b9c0d", // v7
			strings.Repeat("a", 32),
			"3f9a6a1b3d544fbe8b3a6b3e8d6b2c88",
		}
		for _, s := range valid {
			if !validReqID(s) {
				t.Fatalf("validReqID should accept %q", s)
			}
		}
	})

	t.Run("rejects bad formats", func(t *testing.T) {
		invalid := []string{
			"",
			"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
			"3f9a6a1b3d544fbe8b3a6b3e8d6b2c8",
			"3f9a6a1b3d544fbe8b3a6b3e8d6b2c880",
			"zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz",
			"3F9A6A1B-3D54-4FBE-8B3A-6B3E8D6B2C88",
			"3f9a6a1b-3d54-9fbe-8b3a-6b3e8d6b2c88", // version 9
			"3f9a6a1b-3d54-4fbe-cb3a-6b3e8d6b2c88", // microsoft variant
			"urn:uuid:3f9a6a1b-3d54-4fbe-8b3a-6b3e8d6b2c88",
		}
		for _, s := range invalid {
			if validReqID(s) {
				t.Fatalf("validReqID should reject %q", s)
			}
		}
	})
}

func Test_parseAxRequestAt(t *testing.T) {
	sec := time.Now().UTC().Unix()
	ms := time.Now().UTC().UnixMilli()
	tests := []struct {
		raw  string
		want time.Time
	}{
		{strconv.FormatInt(sec, 10), time.Unix(sec, 0).UTC()},
		{strconv.FormatInt(ms, 10), time.UnixMilli(ms).UTC()},
		{"2025-09-05T10:00:00+07:00", time.Date(2025, 9, 5, 3, 0, 0, 0, time.UTC)},
		{"2025-09-05T03:00:00.5Z", time.Date(2025, 9, 5, 3, 0, 0, 5e8, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseAxRequestAt(tt.raw)
		if err != nil {
			t.Fatalf("parseAxRequestAt(%q): %v", tt.raw, err)
		}
		if !got.Equal(tt.want) {
			t.Fatalf("parseAxRequestAt(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	for _, raw := range []string{"", "not-a-time", "2025-09-05T10:00:00", "1736123456abc"} {
		if _, err := parseAxRequestAt(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func Test_provisionalSet_LoadEntry(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	ctx := context.Background()

	key := buildKey("POST", "/groups/G1/members/U1/loans", "U1", strings.Repeat("a", 32))
	entry := idempEntry{
		InProgress:  true,
		BodySHA256:  bodyHash([]byte(`{"a":1}`)),
		RequestID:   strings.Repeat("a", 32),
		RequestAtMS: time.Now().UnixMilli(),
		CreatedAt:   nowUTC(),
	}

	ok, err := provisionalSet(ctx, rdb, key, entry, 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("provisionalSet 1: ok=%v err=%v", ok, err)
	}
	if ttl := rdb.TTL(ctx, key).Val(); ttl <= 0 || ttl > 30*time.Second {
		t.Fatalf("provisional TTL not set correctly: %v", ttl)
	}

	ok, err = provisionalSet(ctx, rdb, key, entry, 30*time.Second)
	if err != nil || ok {
		t.Fatalf("provisionalSet 2: ok=%v err=%v", ok, err)
	}

	got, err := loadEntry(ctx, rdb, key)
	if err != nil {
		t.Fatalf("loadEntry err: %v", err)
	}
	if !got.InProgress || got.RequestID != entry.RequestID || got.BodySHA256 != entry.BodySHA256 {
		t.Fatalf("loaded entry mismatch: %+v vs %+v", got, entry)
	}
}

func Test_saveFinal_Load_TTL(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	ctx := context.Background()

	key := buildKey("POST", "/groups/G1/loans/L1/repayments", "U1", strings.Repeat("a", 32))
	final := idempEntry{
		Code:       201,
		Body:       []byte(`{"ok":true}`),
		BodySHA256: bodyHash([]byte(`{"amount":"5250"}`)),
		RequestID:  strings.Repeat("a", 32),
		CreatedAt:  nowUTC(),
	}
	if err := saveFinal(ctx, rdb, key, final, 5*time.Second); err != nil {
		t.Fatalf("saveFinal err: %v", err)
	}

	got, err := loadEntry(ctx, rdb, key)
	if err != nil {
		t.Fatalf("load after final err: %v", err)
	}
	if got.Code != 201 || string(got.Body) != `{"ok":true}` || got.InProgress {
		t.Fatalf("final entry mismatch: %+v", got)
	}

	mr.FastForward(6 * time.Second)
	if _, err := loadEntry(ctx, rdb, key); err == nil {
		t.Fatalf("entry should expire after its ttl")
	}
}
