package activity

import "strings"

// UserAgentInfo is the classification of a user agent string
type UserAgentInfo struct {
	Device  DeviceType
	OS      string
	Browser string
}

// uaRule maps any of its lowercase tokens to a category
type uaRule struct {
	tokens []string
	value  string
}

func (r uaRule) matches(ua string) bool {
	for _, t := range r.tokens {
		if strings.Contains(ua, t) {
			return true
		}
	}
	return false
}

// Rule order matters: the first match wins.
var (
	deviceRules = []uaRule{
		{[]string{"bot", "crawler", "spider", "slurp"}, string(DeviceBot)},
		{[]string{"ipad", "tablet", "kindle", "silk/"}, string(DeviceTablet)},
		{[]string{"iphone", "ipod", "windows phone", "mobile", "android"}, string(DeviceMobile)},
	}
	osRules = []uaRule{
		{[]string{"windows phone"}, "Windows Phone"},
		{[]string{"windows"}, "Windows"},
		{[]string{"iphone", "ipad", "ipod"}, "iOS"},
		{[]string{"cros"}, "Chrome OS"},
		{[]string{"macintosh", "mac os x"}, "Mac OS X"},
		{[]string{"android"}, "Android"},
		{[]string{"linux", "x11"}, "Linux"},
	}
	browserRules = []uaRule{
		{[]string{"edg/", "edge/", "edga/", "edgios/"}, "Edge"},
		{[]string{"opr/", "opera"}, "Opera"},
		{[]string{"firefox/", "fxios/"}, "Firefox"},
		{[]string{"msie", "trident/"}, "IE"},
		{[]string{"chrome/", "crios/"}, "Chrome"},
		{[]string{"safari/"}, "Safari"},
	}
)

const uaDefault = "Other"

func classify(rules []uaRule, ua string) string {
	for _, r := range rules {
		if r.matches(ua) {
			return r.value
		}
	}
	return uaDefault
}

// ClassifyUserAgent derives device family, OS and browser from a user agent.
// Unknown dimensions resolve to "Other".
func ClassifyUserAgent(ua string) UserAgentInfo {
	lower := strings.ToLower(ua)
	return UserAgentInfo{
		Device:  DeviceType(classify(deviceRules, lower)),
		OS:      classify(osRules, lower),
		Browser: classify(browserRules, lower),
	}
}
