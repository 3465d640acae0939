package entity

import "time"

// SavedImage records a completed write of one descriptor to disk.
type SavedImage struct {
	Descriptor ImageDescriptor
	Path       string
	Bytes      int64
	SHA256     string
	SavedAt    time.Time
}
