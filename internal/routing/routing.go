// Package routing picks the storage backend for a file from its size.
package routing

import "fmt"

// DefaultThreshold is the largest size routed to object storage (20 MiB).
const DefaultThreshold int64 = 20 * 1024 * 1024

// Route is the backend selected for a file.
type Route string

const (
	// DirectTransfer copies the file into object storage.
	DirectTransfer Route = "direct"
	// ProxiedStorage keeps the file in the chat backend and serves it through the proxy.
	ProxiedStorage Route = "proxied"
)

func (r Route) String() string {
	return string(r)
}

// Decide returns DirectTransfer when size <= threshold and ProxiedStorage otherwise.
// A zero size is a detection failure and must be rejected by the caller first.
func Decide(size, threshold int64) Route {
	if size <= threshold {
		return DirectTransfer
	}
	return ProxiedStorage
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatSize renders a byte count for humans, e.g. "20.0 MB".
func FormatSize(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	value := float64(size)
	i := 0
	for value >= 1024 && i < len(sizeUnits)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", value, sizeUnits[i])
}
