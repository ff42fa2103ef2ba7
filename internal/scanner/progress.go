package scanner

import "time"

// Progress is a snapshot of a running Scan, sent by ScanWithProgress.
type Progress struct {
	Root         string
	FilesScanned int64
	DirsScanned  int64
	// BytesFound sums the sizes of the files collected so far.
	BytesFound int64
	Done       bool
	StartTime  time.Time
	Duration   time.Duration
}

// Elements is the number of elements collected so far.
func (p Progress) Elements() int64 {
	return p.FilesScanned + p.DirsScanned
}

// ItemsPerSecond returns the collection rate, or 0 before any time passed.
func (p Progress) ItemsPerSecond() float64 {
	secs := p.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(p.Elements()) / secs
}
