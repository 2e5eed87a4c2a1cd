package user_agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"linkpage/internal/pkg/user_agent"
)

func TestParseUserAgent(t *testing.T) {
	testCases := []struct {
		name            string
		userAgent       string
		expectedBrowser string
		expectedOS      string
		expectedDevice  string
	}{
		{
			name:            "Chrome on Windows",
			userAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			expectedBrowser: "Chrome",
			expectedOS:      "Windows",
			expectedDevice:  user_agent.DeviceDesktop,
		},
		{
			name:            "Safari on iPhone",
			userAgent:       "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			expectedBrowser: "Mobile Safari",
			expectedOS:      "iOS",
			expectedDevice:  user_agent.DeviceMobile,
		},
		{
			name:            "Chrome on Android",
			userAgent:       "Mozilla/5.0 (Linux; Android 11; SM-G998B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.120 Mobile Safari/537.36",
			expectedBrowser: "Chrome Mobile",
			expectedOS:      "Android",
			expectedDevice:  user_agent.DeviceMobile,
		},
		{
			name:            "Safari on iPad",
			userAgent:       "Mozilla/5.0 (iPad; CPU OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			expectedBrowser: "Mobile Safari",
			expectedOS:      "iPadOS",
			expectedDevice:  user_agent.DeviceTablet,
		},
		{
			name:            "Firefox on Linux",
			userAgent:       "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0",
			expectedBrowser: "Firefox",
			expectedOS:      "GNU/Linux",
			expectedDevice:  user_agent.DeviceDesktop,
		},
		{
			name:            "Instagram in-app browser",
			userAgent:       "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/21B80 Instagram 307.0.0.34.111",
			expectedBrowser: "Instagram App",
			expectedOS:      "iOS",
			expectedDevice:  user_agent.DeviceMobile,
		},
		{
			name:            "Threads in-app browser",
			userAgent:       "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Barcelona 311.0.0.32.118 (iPhone15,3; iOS 17_2; en_US; en)",
			expectedBrowser: "Threads App",
			expectedOS:      "iOS",
			expectedDevice:  user_agent.DeviceMobile,
		},
		{
			name:            "Snapchat in-app browser",
			userAgent:       "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Snapchat/12.60.0.46 (like Safari/8616.1.21.10.1, panda)",
			expectedBrowser: "Snapchat App",
			expectedOS:      "iOS",
			expectedDevice:  user_agent.DeviceMobile,
		},
		{
			name:            "Samsung Browser on Android",
			userAgent:       "Mozilla/5.0 (Linux; Android 13; SAMSUNG SM-S911B) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/23.0 Chrome/115.0.0.0 Mobile Safari/537.36",
			expectedBrowser: "Samsung Browser",
			expectedOS:      "Android",
			expectedDevice:  user_agent.DeviceMobile,
		},
		{
			name:            "Edge on Xbox",
			userAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64; Xbox; Xbox One) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edge/44.18363.8131",
			expectedBrowser: "Microsoft Edge",
			expectedOS:      "Xbox",
			expectedDevice:  user_agent.DeviceConsole,
		},
		{
			name:            "Samsung smart TV",
			userAgent:       "Mozilla/5.0 (SMART-TV; LINUX; Tizen 6.0) AppleWebKit/537.36 (KHTML, like Gecko) 76.0.3809.146/6.0 TV Safari/537.36",
			expectedBrowser: user_agent.Unknown,
			expectedOS:      "Tizen",
			expectedDevice:  user_agent.DeviceTV,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := user_agent.ParseUserAgent(tc.userAgent)

			assert.Equal(t, tc.expectedBrowser, result.Browser)
			assert.Equal(t, tc.expectedOS, result.OS)
			assert.Equal(t, tc.expectedDevice, result.Device)
			assert.False(t, result.Bot)
		})
	}
}

func TestParseUserAgentBots(t *testing.T) {
	bots := []string{
		"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
		"facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)",
		"curl/8.4.0",
		"Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko; compatible; GPTBot/1.2; +https://openai.com/gptbot)",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1 (Applebot/0.1; +http://www.apple.com/go/applebot)",
		"Mozilla/5.0 (compatible; SomeCrawler/1.0; crawler)",
	}

	for _, ua := range bots {
		result := user_agent.ParseUserAgent(ua)
		assert.True(t, result.Bot, ua)
		assert.Equal(t, user_agent.DeviceBot, result.Device, ua)
	}
}

func TestParseUserAgentEmpty(t *testing.T) {
	result := user_agent.ParseUserAgent("")
	assert.False(t, result.Bot)
	assert.Equal(t, user_agent.Unknown, result.Device)
}
