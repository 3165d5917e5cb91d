package intake

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strings"
)

// ErrDisallowedURL is returned for download URLs outside the allowed set:
// public https hosts, plus loopback and private hosts when
// ALLOW_PRIVATE_DOWNLOAD_URLS is set.
var ErrDisallowedURL = errors.New("download URL not allowed")

// carrier-grade NAT, not covered by netip's IsPrivate
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func validateDownloadURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: unparseable", ErrDisallowedURL)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrDisallowedURL)
	}

	internal := isInternalHost(host)
	allowInternal := internal && allowPrivateDownloadURLs()

	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		if !allowInternal {
			return fmt.Errorf("%w: scheme must be https", ErrDisallowedURL)
		}
	default:
		return fmt.Errorf("%w: scheme must be https", ErrDisallowedURL)
	}

	if internal && !allowInternal {
		return fmt.Errorf("%w: internal host %s", ErrDisallowedURL, host)
	}
	return nil
}

func allowPrivateDownloadURLs() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_PRIVATE_DOWNLOAD_URLS"))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// isInternalHost reports localhost names and literal addresses that do not
// route to the public internet. Other names are not resolved.
func isInternalHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsMulticast() ||
		sharedAddressSpace.Contains(addr)
}
