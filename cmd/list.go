/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/session"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List the serial ports on the system.

Ports matching the ignore rules of the configuration are left out unless
--all is given. Legacy ttyS ports are ignored unless ignore.show_ttys is set.

Use the VID:PID:Serial column as the address of connect and capture to
follow a device regardless of the path it gets.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, notices := loadConfig(os.Stderr)
		warn(notices)

		ports, err := session.SystemEnumerator{}.Ports()
		if err != nil {
			return fmt.Errorf("list ports: %w", err)
		}

		all, _ := cmd.Flags().GetBool("all")
		if !all {
			ignore, err := cfg.IgnoreList()
			if err != nil {
				warn([]string{err.Error()})
			}
			ports = ignore.Filter(ports)
		}

		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")

		ports = filterPorts(ports, filterType)
		if len(ports) == 0 {
			if filterType != "" {
				fmt.Printf("No serial ports found matching filter: %s\n", filterType)
			} else {
				fmt.Println("No serial ports found")
			}
			return nil
		}

		if tableFormat {
			renderTable(os.Stdout, ports)
		} else {
			renderSimple(os.Stdout, ports)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "f", "", "Filter by port type: usb, standard, arm, all")
	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
	listCmd.Flags().BoolP("all", "a", false, "Include ignored ports")
}

// filterPorts filters the port list based on the specified filter type
func filterPorts(ports []identity.PortIdentity, filterType string) []identity.PortIdentity {
	if filterType == "" || filterType == "all" {
		return ports
	}

	var filtered []identity.PortIdentity
	for _, port := range ports {
		name := strings.ToLower(filepath.Base(port.Path))
		switch strings.ToLower(filterType) {
		case "usb":
			if port.IsUSB() || strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm") {
				filtered = append(filtered, port)
			}
		case "standard":
			if strings.HasPrefix(name, "ttys") {
				filtered = append(filtered, port)
			}
		case "arm":
			if strings.HasPrefix(name, "ttyama") {
				filtered = append(filtered, port)
			}
		}
	}
	return filtered
}

// renderTable renders the port list in a styled static table format
func renderTable(w io.Writer, ports []identity.PortIdentity) {
	fmt.Fprintf(w, "Found %d serial port(s):\n\n", len(ports))

	portWidth := 15
	typeWidth := 16
	usbWidth := 24
	descWidth := 30

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("240")).
		PaddingBottom(1)

	cellStyle := lipgloss.NewStyle().
		PaddingRight(2)

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s",
		portWidth, "Port",
		typeWidth, "Type",
		usbWidth, "VID:PID:Serial",
		descWidth, "Description")
	fmt.Fprintln(w, headerStyle.Render(header))

	for _, port := range ports {
		usb := "-"
		if port.USB != nil {
			usb = port.USB.String()
		}
		name := filepath.Base(port.Path)
		row := fmt.Sprintf("%-*s %-*s %-*s %-*s",
			portWidth, name,
			typeWidth, getPortType(name),
			usbWidth, usb,
			descWidth, port.Description)
		fmt.Fprintln(w, cellStyle.Render(row))
	}
}

// renderSimple prints one port per line, followed by its USB identity.
func renderSimple(w io.Writer, ports []identity.PortIdentity) {
	for _, port := range ports {
		if port.USB != nil {
			fmt.Fprintf(w, "%s\t%s\n", port.Path, port.USB)
			continue
		}
		fmt.Fprintln(w, port.Path)
	}
}

// getPortType returns a more specific type classification for the port
func getPortType(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "ttyusb"):
		return "USB Serial"
	case strings.HasPrefix(name, "ttyacm"):
		return "USB CDC/ACM"
	case strings.HasPrefix(name, "ttyama"):
		return "ARM Serial"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial"
	case strings.HasPrefix(name, "ttysac"):
		return "Samsung Serial"
	case strings.HasPrefix(name, "ttyths"):
		return "Tegra Serial"
	case strings.HasPrefix(name, "ttyo"):
		return "OMAP Serial"
	case strings.HasPrefix(name, "ttys"):
		return "Standard Serial"
	default:
		return "Serial Port"
	}
}
