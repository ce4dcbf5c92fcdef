package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "per-article endpoint",
			key: CacheKey{
				Endpoint: "/metrics/pageviews/per-article/en.wikipedia/all-access/all-agents/Go/daily/2025070100/2025070300",
			},
			want: "pageviews:metrics/pageviews/per-article/en.wikipedia/all-access/all-agents/Go/daily/2025070100/2025070300",
		},
		{
			name: "top endpoint",
			key: CacheKey{
				Endpoint: "/metrics/pageviews/top/de.wikipedia/all-access/2025/07/01",
			},
			want: "pageviews:metrics/pageviews/top/de.wikipedia/all-access/2025/07/01",
		},
		{
			name: "trailing slash normalized",
			key: CacheKey{
				Endpoint: "/metrics/pageviews/aggregate/en.wikipedia/all-access/all-agents/daily/2025070100/2025070300/",
			},
			want: "pageviews:metrics/pageviews/aggregate/en.wikipedia/all-access/all-agents/daily/2025070100/2025070300",
		},
		{
			name: "empty endpoint",
			key:  CacheKey{},
			want: "pageviews",
		},
		{
			name: "query params sorted",
			key: CacheKey{
				Endpoint: "/metrics/pageviews/top/en.wikipedia/all-access/2025/07/01",
				QueryParams: url.Values{
					"b": []string{"2"},
					"a": []string{"1"},
				},
			},
			want: "pageviews:metrics/pageviews/top/en.wikipedia/all-access/2025/07/01:a=1:b=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	key := CacheKey{
		Endpoint: "/metrics/pageviews/top/en.wikipedia/all-access/2025/07/01",
		QueryParams: url.Values{
			"z": []string{"last"},
			"a": []string{"first"},
			"m": []string{"middle"},
		},
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}
