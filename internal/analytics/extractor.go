// Package analytics derives click attributes from raw request metadata.
// Extraction is pure: no I/O, no clock, safe on any worker.
package analytics

import (
	"net/url"
	"regexp"
	"strings"

	"shortlink/internal/domain"

	ua "github.com/mileusna/useragent"
)

// Device buckets.
const (
	DeviceMobile  = "MOBILE"
	DeviceTablet  = "TABLET"
	DeviceDesktop = "DESKTOP"
	DeviceUnknown = "UNKNOWN"
)

// Browser buckets.
const (
	BrowserChrome  = "CHROME"
	BrowserFirefox = "FIREFOX"
	BrowserSafari  = "SAFARI"
	BrowserEdge    = "EDGE"
	BrowserOpera   = "OPERA"
	BrowserIE      = "IE"
	BrowserOther   = "OTHER"
)

// OS buckets.
const (
	OSWindows = "WINDOWS"
	OSMacOS   = "MACOS"
	OSLinux   = "LINUX"
	OSAndroid = "ANDROID"
	OSiOS     = "IOS"
	OSOther   = "OTHER"
)

// Referrer classes.
const (
	ReferrerDirect   = "DIRECT"
	ReferrerSocial   = "SOCIAL"
	ReferrerSearch   = "SEARCH"
	ReferrerEmail    = "EMAIL"
	ReferrerReferral = "REFERRAL"
)

// socialPlatforms maps referrer domains to platform labels.
var socialPlatforms = map[string]string{
	"facebook.com":   "FACEBOOK",
	"fb.com":         "FACEBOOK",
	"m.facebook.com": "FACEBOOK",
	"twitter.com":    "TWITTER",
	"x.com":          "TWITTER",
	"t.co":           "TWITTER",
	"instagram.com":  "INSTAGRAM",
	"linkedin.com":   "LINKEDIN",
	"youtube.com":    "YOUTUBE",
	"youtu.be":       "YOUTUBE",
	"tiktok.com":     "TIKTOK",
	"pinterest.com":  "PINTEREST",
	"snapchat.com":   "SNAPCHAT",
	"reddit.com":     "REDDIT",
	"discord.com":    "DISCORD",
	"telegram.org":   "TELEGRAM",
	"whatsapp.com":   "WHATSAPP",
}

var searchEngines = []string{
	"google", "bing", "yahoo", "yandex", "duckduckgo", "baidu", "ask", "aol",
}

var emailHosts = []string{"mail.", "outlook.", "gmail.", "yahoo."}

// botPattern matches known crawlers, fetch libraries, automation and
// headless browsers.
var botPattern = regexp.MustCompile(`(?i)bot|crawler|spider|crawl|slurp|scraper|facebookexternalhit|whatsapp|postman|curl|wget|python|java|node|phantom|headless|puppeteer|selenium`)

// automationHeaders indicate scripted clients when present at all.
var automationHeaders = []string{
	"x-requested-with",
	"x-automation-tool",
	"x-bot",
	"x-crawler",
}

// Attributes are the derived fields of a click log.
type Attributes struct {
	IPAddress      string
	UserAgent      string
	Country        string
	City           string
	Device         string
	Browser        string
	OS             string
	Referrer       string
	ReferrerType   string
	SocialPlatform string
	UTMSource      string
	UTMMedium      string
	UTMCampaign    string
	UTMTerm        string
	UTMContent     string
	GClid          string
	FBClid         string
	MSClkid        string
	SessionID      string
	IsBot          bool
}

// Extract derives click attributes from the raw request metadata bundle.
// Geolocation (Country/City) is an extension point: it stays empty until a
// lookup backend is plugged in.
func Extract(raw domain.RawRequest) Attributes {
	userAgent := raw.Header("user-agent")
	referrer := extractReferrer(raw)
	parsed := ua.Parse(userAgent)

	return Attributes{
		IPAddress:      extractIP(raw),
		UserAgent:      userAgent,
		Device:         deviceType(parsed, userAgent),
		Browser:        browserType(parsed, userAgent),
		OS:             osType(parsed),
		Referrer:       referrer,
		ReferrerType:   classifyReferrer(referrer),
		SocialPlatform: socialPlatform(referrer),
		UTMSource:      param(raw, "utm_source"),
		UTMMedium:      param(raw, "utm_medium"),
		UTMCampaign:    param(raw, "utm_campaign"),
		UTMTerm:        param(raw, "utm_term"),
		UTMContent:     param(raw, "utm_content"),
		GClid:          param(raw, "gclid"),
		FBClid:         param(raw, "fbclid"),
		MSClkid:        param(raw, "msclkid"),
		SessionID:      sessionID(raw),
		IsBot:          detectBot(userAgent, raw),
	}
}

// extractIP resolves the client address with proxy headers first, then the
// socket address, then the alternate address list.
func extractIP(raw domain.RawRequest) string {
	if ip := raw.Header("cf-connecting-ip"); ip != "" {
		return ip
	}
	if ip := raw.Header("x-real-ip"); ip != "" {
		return ip
	}
	if fwd := raw.Header("x-forwarded-for"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if ip := raw.Header("x-client-ip"); ip != "" {
		return ip
	}
	if raw.IP != "" {
		return raw.IP
	}
	if len(raw.IPs) > 0 {
		return raw.IPs[0]
	}
	return "UNKNOWN"
}

func extractReferrer(raw domain.RawRequest) string {
	if ref := raw.Header("referer"); ref != "" {
		return ref
	}
	return raw.Header("referrer")
}

func classifyReferrer(referrer string) string {
	if referrer == "" {
		return ReferrerDirect
	}

	host := referrerHost(referrer)
	for domainName := range socialPlatforms {
		if strings.Contains(host, domainName) {
			return ReferrerSocial
		}
	}
	for _, engine := range searchEngines {
		if strings.Contains(host, engine) {
			return ReferrerSearch
		}
	}
	for _, mailHost := range emailHosts {
		if strings.Contains(host, mailHost) {
			return ReferrerEmail
		}
	}
	return ReferrerReferral
}

func socialPlatform(referrer string) string {
	if referrer == "" {
		return ""
	}
	host := referrerHost(referrer)
	for domainName, platform := range socialPlatforms {
		if strings.Contains(host, domainName) {
			return platform
		}
	}
	return ""
}

// referrerHost lowers the referrer and, when it parses as a URL, narrows to
// its hostname so path segments can't fake a classification.
func referrerHost(referrer string) string {
	lower := strings.ToLower(referrer)
	if u, err := url.Parse(lower); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return lower
}

// param looks a parameter up in query, body and cookies in that precedence
// order.
func param(raw domain.RawRequest, name string) string {
	if v := raw.Query[name]; v != "" {
		return v
	}
	if v := raw.Body[name]; v != "" {
		return v
	}
	return raw.Cookies[name]
}

func sessionID(raw domain.RawRequest) string {
	for _, key := range []string{"sessionId", "session_id", "sid"} {
		if v := raw.Cookies[key]; v != "" {
			return v
		}
	}
	for _, key := range []string{"sessionId", "session_id"} {
		if v := raw.Query[key]; v != "" {
			return v
		}
	}
	return raw.Header("x-session-id")
}

func detectBot(userAgent string, raw domain.RawRequest) bool {
	// No user agent at all is suspicious.
	if userAgent == "" {
		return true
	}
	if botPattern.MatchString(userAgent) {
		return true
	}
	for _, h := range automationHeaders {
		if _, ok := raw.Headers[h]; ok {
			return true
		}
	}
	return false
}

func deviceType(parsed ua.UserAgent, userAgent string) string {
	switch {
	case parsed.Tablet:
		return DeviceTablet
	case parsed.Mobile:
		return DeviceMobile
	case parsed.Desktop:
		return DeviceDesktop
	}

	// Fallback to family-name substring matching.
	lower := strings.ToLower(userAgent)
	switch {
	case strings.Contains(lower, "tablet") || strings.Contains(lower, "ipad"):
		return DeviceTablet
	case strings.Contains(lower, "mobile") || strings.Contains(lower, "android"):
		return DeviceMobile
	}
	return DeviceUnknown
}

func browserType(parsed ua.UserAgent, userAgent string) string {
	switch parsed.Name {
	case ua.Chrome:
		return BrowserChrome
	case ua.Firefox:
		return BrowserFirefox
	case ua.Safari:
		return BrowserSafari
	case ua.Edge:
		return BrowserEdge
	case ua.Opera, ua.OperaMini:
		return BrowserOpera
	case ua.InternetExplorer:
		return BrowserIE
	}

	lower := strings.ToLower(userAgent)
	switch {
	case strings.Contains(lower, "edg"):
		return BrowserEdge
	case strings.Contains(lower, "opr") || strings.Contains(lower, "opera"):
		return BrowserOpera
	case strings.Contains(lower, "chrome"):
		return BrowserChrome
	case strings.Contains(lower, "firefox"):
		return BrowserFirefox
	case strings.Contains(lower, "safari"):
		return BrowserSafari
	}
	return BrowserOther
}

func osType(parsed ua.UserAgent) string {
	switch parsed.OS {
	case ua.Windows:
		return OSWindows
	case ua.MacOS:
		return OSMacOS
	case ua.Linux:
		return OSLinux
	case ua.Android:
		return OSAndroid
	case ua.IOS:
		return OSiOS
	}
	return OSOther
}

// Apply copies the attributes onto a click log row.
func (a Attributes) Apply(log *domain.ClickLog) {
	log.IPAddress = a.IPAddress
	log.UserAgent = a.UserAgent
	log.Country = a.Country
	log.City = a.City
	log.Device = a.Device
	log.Browser = a.Browser
	log.OS = a.OS
	log.Referrer = a.Referrer
	log.ReferrerType = a.ReferrerType
	log.SocialPlatform = a.SocialPlatform
	log.UTMSource = a.UTMSource
	log.UTMMedium = a.UTMMedium
	log.UTMCampaign = a.UTMCampaign
	log.UTMTerm = a.UTMTerm
	log.UTMContent = a.UTMContent
	log.GClid = a.GClid
	log.FBClid = a.FBClid
	log.MSClkid = a.MSClkid
	log.SessionID = a.SessionID
	log.IsBot = a.IsBot
}
