// Package instanceid computes the short, stable per-node identifier used
// to suffix job names so that residue left behind by a crashed instance
// can be purged on recovery without touching jobs owned by a live peer.
package instanceid

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
)

// Resolve returns "<hostname>-<4-byte-md5-hex-of-hostname>", e.g.
// "worker-07-a1b2c3d4". The MD5 digest is truncated for length, not
// security: any 4-byte hash of the hostname would do.
func Resolve() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("resolve hostname: %w", err)
	}
	return FromHostname(host), nil
}

// FromHostname derives the instance-id suffix for an explicit hostname,
// bypassing os.Hostname — used by tests and by callers that already know
// their advertised host name.
func FromHostname(hostname string) string {
	sum := md5.Sum([]byte(hostname))
	return hostname + "-" + hex.EncodeToString(sum[:4])
}
