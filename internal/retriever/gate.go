package retriever

import (
	"regexp"
	"strings"
	"unicode"
)

// Compiled pattern families for gate classification.
var (
	// Command/greeting/system prefixes: turns that address the runtime
	// itself rather than stating something worth recalling against.
	commandPrefixPattern = regexp.MustCompile(`(?i)^(hi|hello|hey|good (morning|afternoon|evening)|\/\w+|system:|assistant:|user:)\b`)

	// Memory-intent patterns: explicit asks to recall or store something,
	// which override a skip decision even on a short/command-like turn.
	// Includes a Chinese phrasing ("你记得" / "上次") alongside the English
	// family since CJK turns hit the short-text skip path far more often.
	memoryIntentPattern = regexp.MustCompile(`(?i)(\b(remember|recall|forget|what did i|do you remember|earlier i (said|told)|last time)\b|你记得|上次)`)

	questionMarkPattern = regexp.MustCompile(`\?`)
)

// GateConfig bundles the adaptive gate's tunable flags.
type GateConfig struct {
	// MinLength is the shortest non-CJK text that is never
	// length-skipped.
	MinLength int

	// MinLengthCJK is the shortest CJK text that is never
	// length-skipped; CJK characters carry more information per rune so
	// the threshold is lower.
	MinLengthCJK int

	// AbsoluteMinLength applies regardless of script or question marks.
	AbsoluteMinLength int
}

// DefaultGateConfig returns the adaptive gate's opinionated defaults.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinLength:         15,
		MinLengthCJK:      6,
		AbsoluteMinLength: 5,
	}
}

// ShouldSkip returns true when text is unlikely to carry anything worth
// retrieving against: too short, a command/greeting/system prefix, or
// emoji-only. A memory-intent match overrides every skip condition.
// Pure function of its input; no I/O.
func ShouldSkip(text string, cfg GateConfig) bool {
	trimmed := strings.TrimSpace(text)

	if memoryIntentPattern.MatchString(trimmed) {
		return false
	}

	if len([]rune(trimmed)) < cfg.AbsoluteMinLength {
		return true
	}

	if !questionMarkPattern.MatchString(trimmed) {
		threshold := cfg.MinLength
		if isMostlyCJK(trimmed) {
			threshold = cfg.MinLengthCJK
		}
		if len([]rune(trimmed)) < threshold {
			return true
		}
	}

	if commandPrefixPattern.MatchString(trimmed) {
		return true
	}

	if isEmojiOnly(trimmed) {
		return true
	}

	return false
}

// isMostlyCJK reports whether more than half of text's letter runes fall
// in a CJK unicode range.
func isMostlyCJK(text string) bool {
	var cjk, letters int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			cjk++
		}
	}
	if letters == 0 {
		return false
	}
	return cjk*2 > letters
}

// isEmojiOnly reports whether text, once whitespace is stripped, is
// composed entirely of symbol/emoji runes with no letters or digits.
func isEmojiOnly(text string) bool {
	hasSymbol := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r) {
			return false
		}
		hasSymbol = true
	}
	return hasSymbol
}
