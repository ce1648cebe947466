// Package xid generates the id tokens used on documents and log entries.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

var (
	docMu   sync.Mutex
	lastMs  int64
	lastSeq int
)

// Doc returns a document id like "OC-1724800000000". Millisecond timestamps
// collide when two documents land in the same tick, so a sequence suffix is
// appended within a process for every repeat of the same millisecond.
func Doc(prefix string) string {
	docMu.Lock()
	defer docMu.Unlock()

	ms := time.Now().UnixMilli()
	if ms == lastMs {
		lastSeq++
		return fmt.Sprintf("%s-%d-%d", prefix, ms, lastSeq)
	}
	lastMs = ms
	lastSeq = 0
	return fmt.Sprintf("%s-%d", prefix, ms)
}

// New returns an opaque unique token with the given prefix, for records where
// ordering does not matter (audit log entries).
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(buf))
}
