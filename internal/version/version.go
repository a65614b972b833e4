// Package version provides build and version information for astarviz.
package version

// Version is the current release version of astarviz.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/astarviz/internal/version.Version=x.y.z"
var Version = "0.3.0"

// String returns the version prefixed for display.
func String() string {
	return "astarviz " + Version
}
