package store

import (
	"regexp"
	"strconv"
	"time"
)

const (
	// SessionDir is the remote directory holding credential snapshots and
	// per-number configuration records.
	SessionDir = "session"
	// NumbersPath is the flat list of known paired numbers.
	NumbersPath = "numbers.json"
)

// snapshotName matches both the canonical creds_<number>.json form and the
// timestamped creds_<number>_<unixms>.json form left behind by older writers.
var snapshotName = regexp.MustCompile(`^creds_(\d+)(?:_(\d+))?\.json$`)

// CredsPath returns the canonical snapshot path for a number.
func CredsPath(number string) string {
	return SessionDir + "/creds_" + number + ".json"
}

// ConfigPath returns the configuration record path for a number.
func ConfigPath(number string) string {
	return SessionDir + "/config_" + number + ".json"
}

// CredsPrefix returns the listing prefix covering every snapshot variant
// stored for a number.
func CredsPrefix(number string) string {
	return SessionDir + "/creds_" + number
}

// ParseSnapshotTime extracts the embedded timestamp from a timestamped
// duplicate snapshot name belonging to number. ok is false for the canonical
// creds_<number>.json, which is the live snapshot and never part of the
// duplicate set.
func ParseSnapshotTime(name, number string) (t time.Time, ok bool) {
	m := snapshotName.FindStringSubmatch(name)
	if m == nil || m[1] != number || m[2] == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// SnapshotOwner reports which number a snapshot name belongs to.
func SnapshotOwner(name string) (string, bool) {
	m := snapshotName.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}
