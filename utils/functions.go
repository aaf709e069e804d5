package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"time"
)

var vmNameFilterRegex = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

// SanitizeVMName strips every character outside [A-Za-z0-9_-] from a folder
// name so it can serve as a Hyper-V VM name. The result may be empty; the
// caller decides whether that is fatal.
func SanitizeVMName(name string) string {
	return vmNameFilterRegex.ReplaceAllString(name, "")
}

func CreateHTTPClient(timeout time.Duration, keepAliveTO time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100, // for connection reuse
		IdleConnTimeout:     keepAliveTO,
		DisableCompression:  true,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
