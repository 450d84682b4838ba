package vlog

import "testing"

func TestShouldLog(t *testing.T) {
	key := "test-handle-42"
	defer forgetDedupKey(key)

	if !shouldLog(key) {
		t.Errorf("first occurrence of a fresh key should log")
	}
	if shouldLog(key) {
		t.Errorf("second occurrence within the dedup window should not log")
	}
}

func TestShouldLogDistinctKeys(t *testing.T) {
	defer forgetDedupKey("a")
	defer forgetDedupKey("b")

	if !shouldLog("a") {
		t.Errorf("key a should log on first occurrence")
	}
	if !shouldLog("b") {
		t.Errorf("key b should log on first occurrence, independent of key a")
	}
}
