package discovery

import (
	"errors"
	"time"

	"github.com/mycodo-go/mycodo-go/pkg/output"
)

const (
	// ServiceType is the DNS-SD service type of the output API.
	ServiceType = "_mycodo-output._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultTTL is the DNS record TTL.
	DefaultTTL = 120 * time.Second

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTRecordSize is the maximum total TXT record size.
	MaxTXTRecordSize = 400
)

// TXT record keys.
const (
	TXTKeyVersion = "ver"   // API version
	TXTKeyAPIPath = "api"   // API base path
	TXTKeyTypes   = "types" // Supported output types (comma-separated)
)

// Errors.
var (
	ErrInvalidPort         = errors.New("invalid port")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 bytes")
	ErrTXTTooLarge         = errors.New("TXT records exceed 400 bytes")
	ErrMissingRequired     = errors.New("missing required field")
)

// ServiceInfo describes the advertised API.
type ServiceInfo struct {
	// Instance is the user-visible instance name.
	Instance string

	// Port is the HTTP port.
	Port int

	Version string
	APIPath string

	// Types are the output types with a driver.
	Types []output.Type
}
