package ingest

import (
	"encoding/binary"
	"io"

	"github.com/spaolacci/murmur3"

	"github.com/pathsight/pathsight/pkg/types"
)

// deduper suppresses records whose (user, timestamp, name) triple was already
// seen. Keys are folded to 128-bit murmur3 digests so the seen set stays
// compact on wide exports.
type deduper struct {
	enabled bool
	seen    map[digestKey]struct{}
}

type digestKey struct {
	h1, h2 uint64
}

func newDeduper(enabled bool) *deduper {
	d := &deduper{enabled: enabled}
	if enabled {
		d.seen = make(map[digestKey]struct{}, 1024)
	}
	return d
}

// IsDuplicate records the event key and reports whether it was seen before.
func (d *deduper) IsDuplicate(ev *types.Event) bool {
	if !d.enabled {
		return false
	}
	key := eventDigest(ev)
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

// eventDigest hashes the identity triple with NUL separators so that field
// boundaries cannot collide.
func eventDigest(ev *types.Event) digestKey {
	h := murmur3.New128()
	io.WriteString(h, ev.UserID)
	h.Write([]byte{0})
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(ev.Timestamp.UnixNano()))
	h.Write(ts[:])
	h.Write([]byte{0})
	io.WriteString(h, ev.Name)
	h1, h2 := h.Sum128()
	return digestKey{h1: h1, h2: h2}
}
