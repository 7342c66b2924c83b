//go:build linux

package v4l2

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unsafe"
)

// Overridden in tests.
var (
	classDir = "/sys/class/video4linux"
	byIDDir  = "/dev/v4l/by-id"
	devDir   = "/dev"
)

// FindDevices lists the video capture nodes on the system ordered by node
// index. Metadata and output nodes are skipped, as are nodes that cannot be
// opened.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(classDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []DeviceInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", classDir, err)
	}

	links := byIDLinks()
	devices := make([]DeviceInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		dev, err := probe(e.Name(), links)
		if err != nil {
			slog.Debug("skipping video node", "component", "linuxav", "node", e.Name(), "error", err)
			continue
		}
		if dev.Caps&capVideoCapture != 0 {
			devices = append(devices, dev)
		}
	}

	slices.SortFunc(devices, func(a, b DeviceInfo) int { return cmp.Compare(a.Index, b.Index) })
	return devices, nil
}

// probe queries one /dev node named by its video4linux class entry.
func probe(name string, links map[string][]string) (DeviceInfo, error) {
	var vcap v4l2Capability
	path := filepath.Join(devDir, name)
	err := withNode(path, func(n node) error {
		return n.ioctl(vidiocQuerycap, unsafe.Pointer(&vcap))
	})
	if err != nil {
		return DeviceInfo{}, err
	}

	sysfs := filepath.Join(classDir, name)
	vendor, product := usbIDs(filepath.Join(sysfs, "device"))
	return DeviceInfo{
		DevicePath: path,
		DeviceName: cstr(vcap.card[:]),
		DeviceID:   stableID(name, int(readSysfs(filepath.Join(sysfs, "index"), 10, 32)), cstr(vcap.busInfo[:]), links),
		Index:      nodeIndex(name),
		Caps:       vcap.effectiveCaps(),
		VendorID:   vendor,
		ProductID:  product,
	}, nil
}

// DevicePath returns the device node for a numeric index.
func DevicePath(index int) string {
	return filepath.Join(devDir, "video"+strconv.Itoa(index))
}

// nodeIndex extracts N from a "videoN" node name.
func nodeIndex(name string) int {
	digits, ok := strings.CutPrefix(name, "video")
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return -1
	}
	return n
}

// byIDLinks maps node names to the udev by-id symlinks that point at them.
func byIDLinks() map[string][]string {
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return nil
	}
	links := make(map[string][]string)
	for _, e := range entries {
		if e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(filepath.Join(byIDDir, e.Name()))
		if err != nil {
			continue
		}
		node := filepath.Base(target)
		links[node] = append(links[node], e.Name())
	}
	return links
}

// stableID picks the by-id link for the node's interface index. Without
// one it builds an id of the same shape from the bus info.
func stableID(name string, index int, busInfo string, links map[string][]string) string {
	suffix := "-video-index" + strconv.Itoa(index)
	for _, link := range links[name] {
		if strings.HasSuffix(link, suffix) {
			return link
		}
	}
	if strings.HasPrefix(busInfo, "usb-") {
		return busInfo + suffix
	}
	return "platform-" + busInfo + suffix
}

// usbIDs reads idVendor and idProduct from the USB device owning the
// interface at iface. The sysfs "device" entry is a symlink, so it is
// resolved before stepping up. Non-USB devices report zero.
func usbIDs(iface string) (vendor, product uint16) {
	resolved, err := filepath.EvalSymlinks(iface)
	if err != nil {
		return 0, 0
	}
	parent := filepath.Dir(resolved)
	return uint16(readSysfs(filepath.Join(parent, "idVendor"), 16, 16)),
		uint16(readSysfs(filepath.Join(parent, "idProduct"), 16, 16))
}

// readSysfs parses a single number from a sysfs attribute, 0 when absent.
func readSysfs(path string, base, bits int) uint64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	v, _ := strconv.ParseUint(string(bytes.TrimSpace(data)), base, bits)
	return v
}

// cstr converts a NUL-terminated byte array to a string.
func cstr(b []byte) string {
	if before, _, ok := bytes.Cut(b, []byte{0}); ok {
		return string(before)
	}
	return string(b)
}
