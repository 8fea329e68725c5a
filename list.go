package serial

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Roots of the device and sysfs trees
var (
	devDir    = "/dev"
	sysfsRoot = "/sys"
)

// Device names of serial ports
var serialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters
	regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM devices
	regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
	regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
	regexp.MustCompile(`^ttymxc\d+$`), // i.MX serial ports
	regexp.MustCompile(`^ttyO\d+$`),   // OMAP serial ports
	regexp.MustCompile(`^ttySAC\d+$`), // Samsung serial ports
	regexp.MustCompile(`^ttyTHS\d+$`), // Tegra serial ports
	regexp.MustCompile(`^rfcomm\d+$`), // Bluetooth serial
}

// Virtual terminals and other non-serial devices
var excludePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^tty\d+$`),
	regexp.MustCompile(`^console$`),
	regexp.MustCompile(`^ptmx$`),
	regexp.MustCompile(`^pty.*$`),
	regexp.MustCompile(`^pts/.*$`),
}

// isSerialName reports whether a /dev entry name looks like a serial port
func isSerialName(name string) bool {
	for _, p := range excludePatterns {
		if p.MatchString(name) {
			return false
		}
	}
	for _, p := range serialPatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// ListPorts returns a list of available serial ports on the system
// Filters for communication-capable devices and excludes virtual terminals
func ListPorts() ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		if !isSerialName(entry.Name()) {
			continue
		}
		fullPath := filepath.Join(devDir, entry.Name())
		if isCharacterDevice(fullPath) {
			ports = append(ports, fullPath)
		}
	}

	sort.Strings(ports)
	return ports, nil
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	// Check if it's a character device
	mode := info.Mode()
	return mode&os.ModeCharDevice != 0
}

// PortInfo describes a serial port. The USB fields are empty for ports
// that are not backed by a USB device.
type PortInfo struct {
	Name        string
	Path        string
	Description string

	VendorID        string // hex, as reported by sysfs ("0403")
	ProductID       string
	SerialNumber    string
	Manufacturer    string
	Product         string
	InterfaceNumber string
	BusNumber       string
	DeviceNumber    string
}

// IsUSB reports whether USB metadata was found for the port
func (p *PortInfo) IsUSB() bool {
	return p.VendorID != "" && p.ProductID != ""
}

// USBIDs parses VendorID and ProductID
func (p *PortInfo) USBIDs() (vid, pid uint16, err error) {
	if !p.IsUSB() {
		return 0, 0, ErrUSBInfoNotAvailable
	}
	v, err := strconv.ParseUint(p.VendorID, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("vendor id %q: %w", p.VendorID, err)
	}
	d, err := strconv.ParseUint(p.ProductID, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("product id %q: %w", p.ProductID, err)
	}
	return uint16(v), uint16(d), nil
}

// GetPortInfo returns detailed information about a specific port
func GetPortInfo(portPath string) (*PortInfo, error) {
	if !isCharacterDevice(portPath) {
		return nil, fmt.Errorf("%s: %w", portPath, ErrDeviceNotFound)
	}

	// Resolve udev symlinks such as /dev/serial/by-id/... to the tty name
	name := filepath.Base(portPath)
	if resolved, err := filepath.EvalSymlinks(portPath); err == nil {
		name = filepath.Base(resolved)
	}

	info := &PortInfo{
		Name:        name,
		Path:        portPath,
		Description: getPortDescription(name),
	}
	enrichUSBInfo(info)
	if info.Product != "" {
		info.Description = info.Product
	}

	return info, nil
}

// ListPortInfo returns GetPortInfo for every port found by ListPorts.
// Ports that vanish while being inspected are skipped.
func ListPortInfo() ([]PortInfo, error) {
	paths, err := ListPorts()
	if err != nil {
		return nil, err
	}
	infos := make([]PortInfo, 0, len(paths))
	for _, p := range paths {
		info, err := GetPortInfo(p)
		if err != nil {
			continue
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	case strings.HasPrefix(name, "rfcomm"):
		return "Bluetooth Serial Port"
	default:
		return "Serial Port"
	}
}

// readSysfsFile returns the trimmed content of a sysfs attribute, or "" if
// it cannot be read
func readSysfsFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// enrichUSBInfo fills the USB fields from sysfs
func enrichUSBInfo(info *PortInfo) {
	enrichUSBInfoFrom(sysfsRoot, info)
}

// enrichUSBInfoFrom walks up from /sys/class/tty/<name>/device to the USB
// device directory, the first ancestor carrying idVendor. usb-serial ports
// sit one level below the interface directory, CDC/ACM ports link to the
// interface directly.
func enrichUSBInfoFrom(root string, info *PortInfo) {
	dir, err := filepath.EvalSymlinks(filepath.Join(root, "class", "tty", info.Name, "device"))
	if err != nil {
		return
	}

	var iface string
	for range 4 {
		if readSysfsFile(filepath.Join(dir, "idVendor")) != "" {
			break
		}
		if n := readSysfsFile(filepath.Join(dir, "bInterfaceNumber")); n != "" && iface == "" {
			iface = n
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}

	vid := readSysfsFile(filepath.Join(dir, "idVendor"))
	if vid == "" {
		return
	}

	info.VendorID = vid
	info.ProductID = readSysfsFile(filepath.Join(dir, "idProduct"))
	info.SerialNumber = readSysfsFile(filepath.Join(dir, "serial"))
	info.Manufacturer = readSysfsFile(filepath.Join(dir, "manufacturer"))
	info.Product = readSysfsFile(filepath.Join(dir, "product"))
	info.BusNumber = readSysfsFile(filepath.Join(dir, "busnum"))
	info.DeviceNumber = readSysfsFile(filepath.Join(dir, "devnum"))
	info.InterfaceNumber = iface
}
