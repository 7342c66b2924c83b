// Package catalog holds the ordered table of resolutions a device session can
// negotiate. Entries are addressed by index and the index space is a public
// compatibility contract: config files and CLI flags store indices, so
// reordering or removing entries is a breaking change. Append only.
package catalog

import (
	"fmt"
	"strings"
)

// Format is the on-the-wire frame format requested from the driver.
type Format string

// Supported frame formats.
const (
	FormatMJPEG Format = "MJPEG"
	FormatYUY2  Format = "YUY2"
)

// FourCC codes as packed little-endian uint32 values.
const (
	FourCCMJPG uint32 = 0x47504A4D // 'MJPG'
	FourCCYUY2 uint32 = 0x32595559 // 'YUY2'
	FourCCYUYV uint32 = 0x56595559 // 'YUYV', the V4L2 spelling of YUY2
)

// FourCC returns the packed fourcc code for the format.
func (f Format) FourCC() uint32 {
	switch f {
	case FormatYUY2:
		return FourCCYUY2
	default:
		return FourCCMJPG
	}
}

// Extension returns the file extension used when persisting raw frames.
func (f Format) Extension() string {
	if f == FormatYUY2 {
		return "yuv"
	}
	return "mjpeg"
}

// FormatFromFourCC maps a fourcc code back to a Format.
func FormatFromFourCC(code uint32) (Format, bool) {
	switch code {
	case FourCCMJPG:
		return FormatMJPEG, true
	case FourCCYUY2, FourCCYUYV:
		return FormatYUY2, true
	default:
		return "", false
	}
}

// ParseFormat parses a case-insensitive format name ("mjpeg", "yuy2", "yuyv").
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MJPEG", "MJPG":
		return FormatMJPEG, nil
	case "YUY2", "YUYV", "YUYV422":
		return FormatYUY2, nil
	default:
		return "", fmt.Errorf("unknown frame format %q", s)
	}
}

// Entry is one negotiable resolution.
type Entry struct {
	Width  int    `json:"width" toml:"width"`
	Height int    `json:"height" toml:"height"`
	Format Format `json:"format" toml:"format"`
	FPS    int    `json:"fps" toml:"fps"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%dx%d@%d %s", e.Width, e.Height, e.FPS, e.Format)
}

// Pixels returns width*height.
func (e Entry) Pixels() int {
	return e.Width * e.Height
}

// Catalog is an immutable ordered list of entries.
type Catalog struct {
	entries      []Entry
	defaultIndex int
}

// New builds a catalog from entries. defaultIndex names the known-good entry
// used by restart as a last resort.
func New(entries []Entry, defaultIndex int) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one entry")
	}
	for i, e := range entries {
		if e.Width <= 0 || e.Height <= 0 || e.FPS <= 0 {
			return nil, fmt.Errorf("catalog entry %d has non-positive dimension or fps: %s", i, e)
		}
		if e.Format != FormatMJPEG && e.Format != FormatYUY2 {
			return nil, fmt.Errorf("catalog entry %d has unknown format %q", i, e.Format)
		}
	}
	if defaultIndex < 0 || defaultIndex >= len(entries) {
		return nil, fmt.Errorf("default index %d outside catalog of %d entries", defaultIndex, len(entries))
	}

	dup := make([]Entry, len(entries))
	copy(dup, entries)
	return &Catalog{entries: dup, defaultIndex: defaultIndex}, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Valid reports whether index addresses an entry.
func (c *Catalog) Valid(index int) bool {
	return index >= 0 && index < len(c.entries)
}

// Get returns the entry at index.
func (c *Catalog) Get(index int) (Entry, bool) {
	if !c.Valid(index) {
		return Entry{}, false
	}
	return c.entries[index], true
}

// Entries returns a copy of all entries in index order.
func (c *Catalog) Entries() []Entry {
	dup := make([]Entry, len(c.entries))
	copy(dup, c.entries)
	return dup
}

// DefaultIndex returns the known-good index.
func (c *Catalog) DefaultIndex() int {
	return c.defaultIndex
}

// LowestIndex returns the index of the entry with the fewest pixels. Ties go
// to the later index, which in the default table is the MJPEG variant.
func (c *Catalog) LowestIndex() int {
	lowest := 0
	for i, e := range c.entries {
		if e.Pixels() <= c.entries[lowest].Pixels() {
			lowest = i
		}
	}
	return lowest
}

// SafeIndices returns the indices cycled through by a hard reset: the lowest
// resolution first, then the default.
func (c *Catalog) SafeIndices() []int {
	low := c.LowestIndex()
	if low == c.defaultIndex {
		return []int{low}
	}
	return []int{low, c.defaultIndex}
}

// IndexOf returns the first index matching width, height and format.
func (c *Catalog) IndexOf(width, height int, format Format) (int, bool) {
	for i, e := range c.entries {
		if e.Width == width && e.Height == height && e.Format == format {
			return i, true
		}
	}
	return -1, false
}
