// Package ssml renders speech markdown into the SSML dialect of a
// text-to-speech platform and checks the result.
package ssml

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPlatform is returned by ParsePlatform for unsupported names.
var ErrUnknownPlatform = errors.New("ssml: unknown platform")

// Platform is a TTS engine family with its own SSML vocabulary.
type Platform string

const (
	Azure   Platform = "azure"
	Google  Platform = "google"
	Amazon  Platform = "amazon"
	Generic Platform = "generic"
)

// Platforms lists every supported platform.
func Platforms() []Platform {
	return []Platform{Azure, Google, Amazon, Generic}
}

// ParsePlatform resolves a case-insensitive platform name. The empty string
// means Generic.
func ParsePlatform(s string) (Platform, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Generic, nil
	}
	for _, p := range Platforms() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// AzureNamespace is the synthesis namespace Azure requires on <speak>.
const AzureNamespace = "http://www.w3.org/2001/10/synthesis"

// prosody is the rate/pitch/volume triple of one emotion.
type prosody struct {
	rate, pitch, volume string
}

// prosodyTable maps platform and emotion label to prosody attributes.
// Unknown labels fall back to "normal".
var prosodyTable = map[Platform]map[string]prosody{
	Azure: {
		"excited":  {"+10%", "+10%", "+10%"},
		"soft":     {"-10%", "-5%", "-20%"},
		"monotone": {"-5%", "-10%", "+0%"},
		"normal":   {"+0%", "+0%", "+0%"},
	},
	Google: {
		"excited":  {"110%", "+2st", "loud"},
		"soft":     {"90%", "-1st", "soft"},
		"monotone": {"95%", "-2st", "medium"},
		"normal":   {"100%", "+0st", "medium"},
	},
	Amazon: {
		"excited":  {"fast", "high", "loud"},
		"soft":     {"slow", "low", "soft"},
		"monotone": {"medium", "low", "medium"},
		"normal":   {"medium", "medium", "medium"},
	},
	Generic: {
		"excited":  {"fast", "high", "loud"},
		"soft":     {"slow", "low", "soft"},
		"monotone": {"medium", "x-low", "medium"},
		"normal":   {"medium", "medium", "medium"},
	},
}

func lookupProsody(p Platform, emotion string) prosody {
	table, ok := prosodyTable[p]
	if !ok {
		table = prosodyTable[Generic]
	}
	if pr, ok := table[emotion]; ok {
		return pr
	}
	return table["normal"]
}
