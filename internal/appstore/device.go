package appstore

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	deviceOnce sync.Once
	deviceID   string
)

// DeviceID returns the guid sent with every private API call: the first
// hardware MAC address, colons stripped, uppercased. Hosts without a usable
// interface get a random identifier instead. Resolved once and cached for the
// lifetime of the process.
func DeviceID() string {
	deviceOnce.Do(func() {
		if mac, err := getMacAddress(); err == nil {
			deviceID = strings.ToUpper(strings.ReplaceAll(mac, ":", ""))
			return
		}
		deviceID = strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	})
	return deviceID
}

func getMacAddress() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if addr := iface.HardwareAddr.String(); addr != "" {
			return addr, nil
		}
	}
	return "", fmt.Errorf("no network interfaces found")
}
