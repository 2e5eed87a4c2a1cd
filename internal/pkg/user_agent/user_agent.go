package user_agent

import (
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Device labels reported by ParseUserAgent.
const (
	DeviceMobile   = "Mobile"
	DeviceTablet   = "Tablet"
	DeviceDesktop  = "Desktop"
	DeviceTV       = "TV"
	DeviceConsole  = "Console"
	DeviceWearable = "Wearable"
	DeviceBot      = "Bot"
	Unknown        = "Unknown"
)

type UserAgent struct {
	UserAgent string
	OS        string
	Browser   string
	Device    string
	Mobile    bool
	Tablet    bool
	Desktop   bool
	Bot       bool
}

//go:embed rules/*.yml
var ruleFiles embed.FS

// Browser and OS rules share the same shape.
type ClientEntry struct {
	Regex   string `yaml:"regex"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type DeviceEntry struct {
	Regex  string `yaml:"regex"`
	Device string `yaml:"device"`
}

type BotEntry struct {
	Regex string `yaml:"regex"`
	Name  string `yaml:"name"`
}

// Compiled regex cache
type RegexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *RegexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

var (
	parser *Parser
	once   sync.Once
)

type Parser struct {
	browsers   []ClientEntry
	oss        []ClientEntry
	devices    []DeviceEntry
	bots       []BotEntry
	regexCache *RegexCache
}

func loadRules(name string, out any) {
	data, err := ruleFiles.ReadFile("rules/" + name)
	if err != nil {
		slog.Default().Error("Missing user agent rules", slog.String("file", name), slog.Any("error", err))
		return
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		slog.Default().Error("Invalid user agent rules", slog.String("file", name), slog.Any("error", err))
	}
}

func getParser() *Parser {
	once.Do(func() {
		parser = &Parser{regexCache: newRegexCache()}
		loadRules("browsers.yml", &parser.browsers)
		loadRules("oss.yml", &parser.oss)
		loadRules("devices.yml", &parser.devices)
		loadRules("bots.yml", &parser.bots)
	})
	return parser
}

func (p *Parser) parseBot(userAgent string) *BotEntry {
	for i := range p.bots {
		if regex, err := p.regexCache.get(p.bots[i].Regex); err == nil {
			if regex.MatchString(userAgent) {
				return &p.bots[i]
			}
		}
	}
	return nil
}

// matchClient returns the name and version of the first entry matching userAgent.
func (p *Parser) matchClient(entries []ClientEntry, userAgent string) (string, string) {
	for _, entry := range entries {
		regex, err := p.regexCache.get(entry.Regex)
		if err != nil {
			continue
		}
		matches := regex.FindStringSubmatch(userAgent)
		if len(matches) == 0 {
			continue
		}
		version := entry.Version
		for i, match := range matches[1:] {
			version = strings.ReplaceAll(version, fmt.Sprintf("$%d", i+1), match)
		}
		return entry.Name, strings.TrimSpace(version)
	}
	return Unknown, ""
}

func (p *Parser) parseDevice(userAgent string) string {
	for _, entry := range p.devices {
		if regex, err := p.regexCache.get(entry.Regex); err == nil && regex.MatchString(userAgent) {
			switch entry.Device {
			case "tablet":
				return DeviceTablet
			case "smartphone", "phablet", "feature phone":
				return DeviceMobile
			case "tv":
				return DeviceTV
			case "console":
				return DeviceConsole
			case "wearable":
				return DeviceWearable
			}
		}
	}
	return DeviceDesktop
}

func ParseUserAgent(userAgent string) UserAgent {
	if strings.TrimSpace(userAgent) == "" {
		return UserAgent{OS: Unknown, Browser: Unknown, Device: Unknown}
	}

	p := getParser()

	if bot := p.parseBot(userAgent); bot != nil {
		return UserAgent{
			UserAgent: userAgent,
			OS:        Unknown,
			Browser:   bot.Name,
			Device:    DeviceBot,
			Bot:       true,
		}
	}

	browser, _ := p.matchClient(p.browsers, userAgent)
	os, _ := p.matchClient(p.oss, userAgent)
	device := p.parseDevice(userAgent)

	return UserAgent{
		UserAgent: userAgent,
		OS:        os,
		Browser:   browser,
		Device:    device,
		Mobile:    device == DeviceMobile,
		Tablet:    device == DeviceTablet,
		Desktop:   device == DeviceDesktop,
	}
}
