//go:build windows

package system

// InitResourceLimits is a no-op on Windows.
func InitResourceLimits() {}
