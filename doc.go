// Package serial is the port layer of serialterm: termios based serial
// ports on Linux and discovery of the ports present on the system.
//
// # Basic Usage
//
// Open a serial port with default configuration (115200 8N1, no flow control):
//
//	port, err := serial.Open("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	n, err := port.Write([]byte("Hello"))
//	buffer := make([]byte, 256)
//	n, err = port.Read(buffer)
//
// Reads wait at most the configured read timeout (100ms by default) and
// return (0, nil) when nothing arrived, so a reader loop can notice
// cancellation. Once the device hangs up, for example because a USB adapter
// was unplugged, Read returns ErrDeviceGone.
//
// # Configuration Options
//
//	port, err := serial.Open("/dev/ttyUSB0",
//	    serial.WithBaudRate(921600),
//	    serial.WithFlowControl(serial.FlowControlRTSCTS),
//	    serial.WithReadTimeout(200*time.Millisecond),
//	    serial.WithInitialDTR(false),
//	)
//
// Ports are opened for exclusive use (TIOCEXCL) unless WithExclusive(false)
// is given.
//
// # Port Discovery
//
//	infos, err := serial.ListPortInfo()
//	for _, info := range infos {
//	    fmt.Printf("%s: %s (VID=%s PID=%s Serial=%s)\n",
//	        info.Path, info.Description, info.VendorID, info.ProductID, info.SerialNumber)
//	}
//
// USB metadata is read from sysfs.
//
// # Error Handling
//
// Open classifies failures as ErrDeviceNotFound, ErrPermissionDenied,
// ErrDeviceInUse or ErrNotATerminal. Use errors.Is:
//
//	if errors.Is(err, serial.ErrPermissionDenied) {
//	    // add the user to the dialout group
//	}
package serial
