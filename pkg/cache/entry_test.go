package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{
			name:    "future expiry",
			expires: time.Now().Add(1 * time.Hour),
			want:    false,
		},
		{
			name:    "past expiry",
			expires: time.Now().Add(-1 * time.Minute),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Expires: tt.expires}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_TTL(t *testing.T) {
	t.Run("future expiry", func(t *testing.T) {
		entry := &CacheEntry{Expires: time.Now().Add(10 * time.Minute)}
		ttl := entry.TTL()
		if ttl <= 9*time.Minute || ttl > 10*time.Minute {
			t.Errorf("TTL() = %v, want ~10m", ttl)
		}
	})

	t.Run("expired entry returns zero", func(t *testing.T) {
		entry := &CacheEntry{Expires: time.Now().Add(-1 * time.Hour)}
		if ttl := entry.TTL(); ttl != 0 {
			t.Errorf("TTL() = %v, want 0", ttl)
		}
	})
}
