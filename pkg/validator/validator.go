package validator

import (
	"net/url"
	"regexp"
	"strings"

	"mediadl/internal/model"
)

// Platform variants accepted by NewClassifier
const (
	VariantStrict   = "strict"
	VariantExtended = "extended"
)

type platformPattern struct {
	name string
	re   *regexp.Regexp
}

var strictPatterns = []platformPattern{
	{"youtube", regexp.MustCompile(`(?i)^(https?://)?(www\.|m\.)?youtube\.com/watch\?v=[\w-]+`)},
	{"youtube", regexp.MustCompile(`(?i)^(https?://)?youtu\.be/[\w-]+`)},
	{"youtube", regexp.MustCompile(`(?i)^(https?://)?(www\.|m\.)?youtube\.com/playlist\?list=[\w-]+`)},
	{"instagram", regexp.MustCompile(`(?i)^(https?://)?(www\.)?instagram\.com/(p|reel)/[\w-]+`)},
}

var extendedPatterns = []platformPattern{
	{"youtube", regexp.MustCompile(`(?i)^(https?://)?(www\.|m\.|music\.)?(youtube\.com|youtu\.be|youtube-nocookie\.com)/.+`)},
	{"instagram", regexp.MustCompile(`(?i)^(https?://)?(www\.)?instagram\.com/.+`)},
	{"tiktok", regexp.MustCompile(`(?i)^(https?://)?([\w-]+\.)?tiktok\.com/.+`)},
	{"twitter", regexp.MustCompile(`(?i)^(https?://)?(www\.|mobile\.)?(twitter\.com|x\.com)/.+`)},
	{"facebook", regexp.MustCompile(`(?i)^(https?://)?([\w-]+\.)?(facebook\.com|fb\.watch)/.+`)},
}

// Classifier decides whether a URL belongs to a supported platform
type Classifier struct {
	patterns         []platformPattern
	retryEligible    []string
	restrictiveHosts []string
}

// NewClassifier builds a classifier from the security config
func NewClassifier(cfg *model.SecurityConfig) *Classifier {
	patterns := extendedPatterns
	if cfg.PlatformVariant == VariantStrict {
		patterns = strictPatterns
	}
	return &Classifier{
		patterns:         patterns,
		retryEligible:    cfg.RetryEligibleHosts,
		restrictiveHosts: cfg.RestrictiveHosts,
	}
}

// Classify returns the platform of rawURL, or false when unsupported
func (c *Classifier) Classify(rawURL string) (model.Platform, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return model.Platform{}, false
	}

	for _, p := range c.patterns {
		if !p.re.MatchString(rawURL) {
			continue
		}
		host := hostOf(rawURL)
		platform := model.Platform{
			Name:          p.name,
			Hint:          model.HintGeneric,
			RetryEligible: matchHost(host, c.retryEligible),
		}
		if matchHost(host, c.restrictiveHosts) {
			platform.Hint = model.HintShortFormRestrictive
		}
		return platform, true
	}

	return model.Platform{}, false
}

// IsPlaylistURL reports whether rawURL looks like a playlist
func IsPlaylistURL(rawURL string) bool {
	return strings.Contains(rawURL, "list=") || strings.Contains(strings.ToLower(rawURL), "playlist")
}

// PlaylistID extracts the list= query value from a YouTube playlist URL
func PlaylistID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("list")
}

func hostOf(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func matchHost(host string, domains []string) bool {
	if host == "" {
		return false
	}
	for _, domain := range domains {
		cleanDomain := strings.ToLower(strings.TrimSpace(domain))
		if len(cleanDomain) == 0 {
			continue
		}
		if host == cleanDomain || strings.HasSuffix(host, "."+cleanDomain) {
			return true
		}
	}
	return false
}

var ansiEscape = regexp.MustCompile(`\x1B(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

// StripANSI removes terminal escape sequences from progress strings
func StripANSI(s string) string {
	return strings.TrimSpace(ansiEscape.ReplaceAllString(s, ""))
}

// ValidateFormatID validates a caller-supplied format selector
func ValidateFormatID(formatID string) bool {
	if len(formatID) == 0 || len(formatID) > 50 {
		return false
	}
	return !strings.ContainsAny(formatID, " \t\r\n;|&`$")
}
