package domain

// DeviceType categorizes the requesting client device.
type DeviceType string

const (
	// DeviceMobile is a phone-class client.
	DeviceMobile DeviceType = "mobile"
	// DeviceTablet is a tablet-class client.
	DeviceTablet DeviceType = "tablet"
	// DeviceDesktop is everything else.
	DeviceDesktop DeviceType = "desktop"
)

// DeviceInfo is the classified request context attached to audit rows.
type DeviceInfo struct {
	DeviceType  DeviceType `json:"device_type"`
	BrowserName string     `json:"browser_name"`
}
