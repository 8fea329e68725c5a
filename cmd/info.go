/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	serial "github.com/allbin/serialterm"
	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/session"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display detailed information about a serial port",
	Long: `Display detailed information about a serial port including USB metadata.

Examples:
  serialterm info /dev/ttyUSB0
  serialterm info /dev/ttyACM0

For USB devices, this displays vendor/product IDs, serial numbers, interface
numbers, and other USB-specific metadata extracted from sysfs, along with
the identity used to find the device again after it is replugged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		portPath := args[0]

		info, err := serial.GetPortInfo(portPath)
		if err != nil {
			return fmt.Errorf("getting port info: %w", err)
		}

		fmt.Printf("Port Information: %s\n\n", info.Path)
		fmt.Printf("  Name:        %s\n", info.Name)
		fmt.Printf("  Description: %s\n", info.Description)

		// USB Device Information
		if info.VendorID != "" || info.ProductID != "" {
			fmt.Println("\nUSB Device Information:")
			if info.VendorID != "" {
				fmt.Printf("  Vendor ID:    %s\n", info.VendorID)
			}
			if info.ProductID != "" {
				fmt.Printf("  Product ID:   %s\n", info.ProductID)
			}
			if info.SerialNumber != "" {
				fmt.Printf("  Serial:       %s\n", info.SerialNumber)
			}
			if info.InterfaceNumber != "" {
				fmt.Printf("  Interface:    %s\n", info.InterfaceNumber)
			}
			if info.BusNumber != "" {
				fmt.Printf("  Bus:          %s\n", info.BusNumber)
			}
			if info.DeviceNumber != "" {
				fmt.Printf("  Device:       %s\n", info.DeviceNumber)
			}
			if info.Manufacturer != "" {
				fmt.Printf("  Manufacturer: %s\n", info.Manufacturer)
			}
			if info.Product != "" {
				fmt.Printf("  Product:      %s\n", info.Product)
			}
		}

		id := session.PortIdentity(info)
		fmt.Println("\nIdentity:")
		fmt.Printf("  Address:      %s\n", identityAddress(id))
		cfg, notices := loadConfig(os.Stderr)
		warn(notices)
		if ignore, _ := cfg.IgnoreList(); ignore.Ignored(id) {
			fmt.Println("  Ignored:      yes (hidden from list and never matched on reconnect)")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

// identityAddress is the most specific address that selects the port.
func identityAddress(id identity.PortIdentity) string {
	if id.USB == nil {
		return id.Path
	}
	return id.USB.String()
}
