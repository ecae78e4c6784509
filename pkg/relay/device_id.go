package relay

import "strings"

const (
	deviceIDLength   = 6
	minDeviceIDChars = 5
)

// DeviceIDFromName derives a device id from a datasource display name such as
// "Sigfox Device 2C30EB". The name is uppercased and reduced to hex digits; the
// id is the last six of those digits. Names with fewer than five hex digits
// yield ok == false.
func DeviceIDFromName(name string) (id string, ok bool) {
	var b strings.Builder

	for _, r := range strings.ToUpper(name) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') {
			b.WriteRune(r)
		}
	}

	hex := b.String()
	if len(hex) < minDeviceIDChars {
		return "", false
	}

	if len(hex) > deviceIDLength {
		hex = hex[len(hex)-deviceIDLength:]
	}

	return hex, true
}
