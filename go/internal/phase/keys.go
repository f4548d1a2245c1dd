package phase

// Keys under which key/value stores persist the record.
const (
	KeyStarted            = "server-state.started"
	KeyBeginningRemaining = "server-state.beginning-timer-remaining"
	KeyEndRemaining       = "server-state.end-timer-remaining"
)

// Entries flattens rec into integer key/value pairs.
func (rec Record) Entries() map[string]int64 {
	started := int64(0)
	if rec.Started {
		started = 1
	}
	return map[string]int64{
		KeyStarted:            started,
		KeyBeginningRemaining: int64(rec.BeginningRemaining),
		KeyEndRemaining:       int64(rec.EndRemaining),
	}
}

// RecordFromEntries rebuilds a Record. Missing keys take their zero value and
// unknown keys are ignored.
func RecordFromEntries(entries map[string]int64) Record {
	rec := Record{
		Started:            entries[KeyStarted] != 0,
		BeginningRemaining: int(entries[KeyBeginningRemaining]),
		EndRemaining:       int(entries[KeyEndRemaining]),
	}
	if rec.BeginningRemaining < 0 {
		rec.BeginningRemaining = 0
	}
	if rec.EndRemaining < 0 {
		rec.EndRemaining = 0
	}
	return rec
}
