package voice

import "sort"

// Locks holds the channel and rid lock tables. Entries are created lazily and
// never removed. Not safe for concurrent use; owned by the serialized loop.
type Locks struct {
	channels map[string]bool
	rids     map[string]bool
}

func NewLocks() *Locks {
	return &Locks{
		channels: make(map[string]bool),
		rids:     make(map[string]bool),
	}
}

// Channel reports the lock for channel and whether it has been seen.
func (l *Locks) Channel(channel string) (locked bool, known bool) {
	locked, known = l.channels[channel]
	return locked, known
}

// RID reports the lock for rid and whether it has been seen.
func (l *Locks) RID(rid string) (locked bool, known bool) {
	locked, known = l.rids[rid]
	return locked, known
}

func (l *Locks) ensure(rid, channel string) {
	if _, ok := l.channels[channel]; !ok {
		l.channels[channel] = false
	}
	if _, ok := l.rids[rid]; !ok {
		l.rids[rid] = false
	}
}

func (l *Locks) grant(rid, channel string) {
	l.channels[channel] = true
	l.rids[rid] = true
}

func (l *Locks) release(rid, channel string) {
	l.channels[channel] = false
	l.rids[rid] = false
}

// LockedChannels lists channels whose lock is currently set, sorted.
func (l *Locks) LockedChannels() []string {
	out := make([]string, 0, len(l.channels))
	for channel, locked := range l.channels {
		if locked {
			out = append(out, channel)
		}
	}
	sort.Strings(out)
	return out
}
