package vlog

import (
	"sync"
	"time"
)

// dedupWindow is how long a (kind, context) key suppresses repeats for.
const dedupWindow = 30 * time.Second

var dedupLock sync.RWMutex
var dedupSeen = make(map[string]time.Time)

// DedupedErrorf logs an error, keyed by key, at most once per dedup window.
// Repeats within the window are dropped without being counted, so a handle
// stuck retrying the same failing ioctl doesn't flood the console or
// Sentry; the first occurrence of a key is always logged in full.
func DedupedErrorf(key string, format string, v ...interface{}) {
	if shouldLog(key) {
		Errorf(format, v...)
	}
}

// DedupedWarnf is DedupedErrorf for warnings.
func DedupedWarnf(key string, format string, v ...interface{}) {
	if shouldLog(key) {
		Warnf(format, v...)
	}
}

func shouldLog(key string) bool {
	dedupLock.Lock()
	defer dedupLock.Unlock()

	last, ok := dedupSeen[key]
	now := time.Now()
	if ok && now.Sub(last) < dedupWindow {
		return false
	}
	dedupSeen[key] = now
	return true
}

// forgetDedupKey clears a key's suppression, for tests.
func forgetDedupKey(key string) {
	dedupLock.Lock()
	defer dedupLock.Unlock()
	delete(dedupSeen, key)
}
