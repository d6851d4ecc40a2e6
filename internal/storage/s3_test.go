package storage

import "testing"

func TestCacheBackendKeys(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		object string
	}{
		{prefix: "cache", key: "kg/b1", object: "cache/kg/b1.json"},
		{prefix: "cache/", key: "analysis/_combined", object: "cache/analysis/_combined.json"},
		{prefix: "", key: "kg/b2", object: "kg/b2.json"},
	}

	for _, tt := range tests {
		b := NewCacheBackend(nil, tt.prefix)
		if got := b.objectKey(tt.key); got != tt.object {
			t.Fatalf("objectKey(%q) = %q, want %q", tt.key, got, tt.object)
		}
		if got := b.keyOf(tt.object); got != tt.key {
			t.Fatalf("keyOf(%q) = %q, want %q", tt.object, got, tt.key)
		}
	}
}
