package stream

// Reading is a single sample stored in the raw sensor log.
type Reading struct {
	Stream    ID
	RawTime   uint32
	Value     uint32
	ReadingID uint32 // 0 means unallocated (virtual/constant streams)
}

// Allocated reports whether this reading has a real reading ID.
func (r Reading) Allocated() bool {
	return r.ReadingID != 0
}
