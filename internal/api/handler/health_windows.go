//go:build windows
// +build windows

package handler

// getDiskStats is a stub on Windows; the service is deployed in Linux
// containers.
func getDiskStats(path string) (total, free, used int64, usedPct float64) {
	return 0, 0, 0, 0
}

// getCPUUsage is a stub on Windows.
func getCPUUsage() float64 {
	return 0
}
