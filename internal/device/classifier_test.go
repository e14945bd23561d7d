package device

import (
	"testing"

	"github.com/avilov/tutorlab/internal/domain"
)

func TestHeaderClassifier_Classify(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      domain.DeviceType
	}{
		{
			name:      "iphone is mobile",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			want:      domain.DeviceMobile,
		},
		{
			name:      "android phone is mobile",
			userAgent: "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			want:      domain.DeviceMobile,
		},
		{
			name:      "ipad is tablet even though it mentions mobile",
			userAgent: "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			want:      domain.DeviceTablet,
		},
		{
			name:      "android without mobile token is tablet",
			userAgent: "Mozilla/5.0 (Linux; Android 14; SM-X910) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			want:      domain.DeviceTablet,
		},
		{
			name:      "kindle is tablet",
			userAgent: "Mozilla/5.0 (Linux; U; Android 4.4.3; KFTHWI Build/KTU84M) Silk/47.1.79",
			want:      domain.DeviceTablet,
		},
		{
			name:      "desktop chrome",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			want:      domain.DeviceDesktop,
		},
		{
			name:      "empty agent defaults to desktop",
			userAgent: "",
			want:      domain.DeviceDesktop,
		},
	}

	c := HeaderClassifier{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.userAgent)
			if got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.userAgent, got, tt.want)
			}
		})
	}
}

func TestBrowserName(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		{
			name:      "edge beats chrome",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
			want:      "Edge",
		},
		{
			name:      "opera beats chrome",
			userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36 OPR/106.0.0.0",
			want:      "Opera",
		},
		{
			name:      "firefox",
			userAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			want:      "Firefox",
		},
		{
			name:      "chrome beats safari",
			userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
			want:      "Chrome",
		},
		{
			name:      "safari",
			userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 Version/17.0 Safari/605.1.15",
			want:      "Safari",
		},
		{
			name:      "internet explorer",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Trident/7.0; rv:11.0) like Gecko",
			want:      "Internet Explorer",
		},
		{
			name:      "empty agent",
			userAgent: "",
			want:      "Unknown",
		},
		{
			name:      "unrecognized agent",
			userAgent: "curl/8.4.0",
			want:      "Other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BrowserName(tt.userAgent)
			if got != tt.want {
				t.Errorf("BrowserName(%q) = %s, want %s", tt.userAgent, got, tt.want)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	ua := "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1"

	info := Info(HeaderClassifier{}, ua)
	if info.DeviceType != domain.DeviceMobile {
		t.Errorf("expected mobile, got %s", info.DeviceType)
	}
	if info.BrowserName != "Safari" {
		t.Errorf("expected Safari, got %s", info.BrowserName)
	}
}
