package devices

import (
	"fmt"
	"strconv"
	"strings"
)

// Strategy picks a device from a detected list. It returns the chosen /dev/videoN
// index and whether anything matched.
type Strategy func(devices []DeviceInfo) (index int, ok bool)

// PreferIndex picks the device at /dev/videoN when it exists. On the ELP rigs
// index 2 is the external camera, behind the built-in and a phone camera.
func PreferIndex(n int) Strategy {
	return func(devices []DeviceInfo) (int, bool) {
		for _, d := range devices {
			if d.Index == n {
				return n, true
			}
		}
		return -1, false
	}
}

// MatchName picks the first device whose card name contains substr,
// case-insensitively.
func MatchName(substr string) Strategy {
	needle := strings.ToLower(substr)
	return func(devices []DeviceInfo) (int, bool) {
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.DeviceName), needle) {
				return d.Index, true
			}
		}
		return -1, false
	}
}

// MatchUSB picks the first device with the given USB vendor and product ids.
func MatchUSB(vendor, product uint16) Strategy {
	return func(devices []DeviceInfo) (int, bool) {
		for _, d := range devices {
			if d.VendorID == vendor && d.ProductID == product {
				return d.Index, true
			}
		}
		return -1, false
	}
}

// First picks the lowest-numbered device.
func First() Strategy {
	return func(devices []DeviceInfo) (int, bool) {
		best := -1
		for _, d := range devices {
			if d.Index >= 0 && (best < 0 || d.Index < best) {
				best = d.Index
			}
		}
		return best, best >= 0
	}
}

// Chain tries each strategy in order.
func Chain(strategies ...Strategy) Strategy {
	return func(devices []DeviceInfo) (int, bool) {
		for _, s := range strategies {
			if idx, ok := s(devices); ok {
				return idx, true
			}
		}
		return -1, false
	}
}

// DefaultStrategy matches the ELP USB ids, then /dev/video2, then the first
// capture node.
func DefaultStrategy() Strategy {
	return Chain(MatchUSB(ELPVendorID, ELPProductID), PreferIndex(2), First())
}

// ParseStrategy builds a strategy from its config form:
//
//	auto                 DefaultStrategy
//	first                First
//	index:N              PreferIndex(N)
//	name:SUBSTR          MatchName(SUBSTR)
//	usb:VVVV:PPPP        MatchUSB, hex ids
func ParseStrategy(s string) (Strategy, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(s), ":")
	switch strings.ToLower(kind) {
	case "", "auto":
		return DefaultStrategy(), nil
	case "first":
		return First(), nil
	case "index":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid device index %q", arg)
		}
		return PreferIndex(n), nil
	case "name":
		if arg == "" {
			return nil, fmt.Errorf("name strategy needs a substring")
		}
		return MatchName(arg), nil
	case "usb":
		v, p, found := strings.Cut(arg, ":")
		if !found {
			return nil, fmt.Errorf("usb strategy needs vendor:product, got %q", arg)
		}
		vendor, err := strconv.ParseUint(v, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid USB vendor id %q: %w", v, err)
		}
		product, err := strconv.ParseUint(p, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid USB product id %q: %w", p, err)
		}
		return MatchUSB(uint16(vendor), uint16(product)), nil
	default:
		return nil, fmt.Errorf("unknown device strategy %q", s)
	}
}
