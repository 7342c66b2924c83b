package catalog

// Well-known indices into the default table.
const (
	DefaultIndex = 11 // 1920x1080 MJPEG @30, known good
	LowestIndex  = 17 // 640x480 MJPEG @30
)

// defaultEntries is the ELP 8MP family table. The YUY2 entries at full sensor
// size run at 1 fps over USB 2.0.
var defaultEntries = []Entry{
	{Width: 4656, Height: 3496, Format: FormatMJPEG, FPS: 10}, // 0
	{Width: 4656, Height: 3496, Format: FormatYUY2, FPS: 1},   // 1
	{Width: 4208, Height: 3120, Format: FormatMJPEG, FPS: 10}, // 2
	{Width: 4208, Height: 3120, Format: FormatYUY2, FPS: 1},   // 3
	{Width: 4160, Height: 3120, Format: FormatMJPEG, FPS: 10}, // 4
	{Width: 4000, Height: 3000, Format: FormatMJPEG, FPS: 10}, // 5
	{Width: 3840, Height: 2160, Format: FormatMJPEG, FPS: 10}, // 6
	{Width: 3264, Height: 2448, Format: FormatMJPEG, FPS: 10}, // 7
	{Width: 2592, Height: 1944, Format: FormatMJPEG, FPS: 10}, // 8
	{Width: 2320, Height: 1744, Format: FormatMJPEG, FPS: 30}, // 9
	{Width: 2048, Height: 1536, Format: FormatMJPEG, FPS: 30}, // 10
	{Width: 1920, Height: 1080, Format: FormatMJPEG, FPS: 30}, // 11
	{Width: 1600, Height: 1200, Format: FormatMJPEG, FPS: 30}, // 12
	{Width: 1280, Height: 960, Format: FormatMJPEG, FPS: 30},  // 13
	{Width: 1280, Height: 720, Format: FormatMJPEG, FPS: 30},  // 14
	{Width: 1024, Height: 768, Format: FormatMJPEG, FPS: 30},  // 15
	{Width: 800, Height: 600, Format: FormatMJPEG, FPS: 30},   // 16
	{Width: 640, Height: 480, Format: FormatMJPEG, FPS: 30},   // 17
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultEntries, DefaultIndex)
	if err != nil {
		panic("catalog: invalid default table: " + err.Error())
	}
	return c
}
