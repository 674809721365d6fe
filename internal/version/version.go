// ABOUTME: Version information for the passthrough
// ABOUTME: Reported in the status feed and the startup log
package version

const (
	// Version is the release version
	Version = "0.1.0"

	// Product is the product name
	Product = "Resonate Pitch"

	// Manufacturer is the publisher
	Manufacturer = "Resonate"
)
