package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/allbin/serialterm/internal/identity"
)

var listedPorts = []identity.PortIdentity{
	{Path: "/dev/ttyUSB0", Description: "FT232R", USB: &identity.USBInfo{VID: 0x0403, PID: 0x6001, Serial: "A50285BI"}},
	{Path: "/dev/ttyACM0", USB: &identity.USBInfo{VID: 0x303a, PID: 0x1001}},
	{Path: "/dev/ttyS0"},
	{Path: "/dev/ttyAMA0"},
}

func TestFilterPorts(t *testing.T) {
	paths := func(ports []identity.PortIdentity) []string {
		var out []string
		for _, p := range ports {
			out = append(out, p.Path)
		}
		return out
	}

	assert.Len(t, filterPorts(listedPorts, ""), 4)
	assert.Len(t, filterPorts(listedPorts, "all"), 4)
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyACM0"}, paths(filterPorts(listedPorts, "usb")))
	assert.Equal(t, []string{"/dev/ttyS0"}, paths(filterPorts(listedPorts, "standard")))
	assert.Equal(t, []string{"/dev/ttyAMA0"}, paths(filterPorts(listedPorts, "arm")))
	assert.Empty(t, filterPorts(listedPorts, "bogus"))
}

func TestRenderSimple(t *testing.T) {
	var buf bytes.Buffer
	renderSimple(&buf, listedPorts[:3])
	assert.Equal(t, "/dev/ttyUSB0\t0403:6001:A50285BI\n/dev/ttyACM0\t303A:1001\n/dev/ttyS0\n", buf.String())
}

func TestGetPortType(t *testing.T) {
	assert.Equal(t, "USB Serial", getPortType("ttyUSB0"))
	assert.Equal(t, "USB CDC/ACM", getPortType("ttyACM1"))
	assert.Equal(t, "Standard Serial", getPortType("ttyS0"))
	assert.Equal(t, "Samsung Serial", getPortType("ttySAC0"))
	assert.Equal(t, "Serial Port", getPortType("rfcomm0"))
}

func TestIdentityAddress(t *testing.T) {
	assert.Equal(t, "0403:6001:A50285BI", identityAddress(listedPorts[0]))
	assert.Equal(t, "/dev/ttyS0", identityAddress(listedPorts[2]))
}
