package guard

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"
	"github.com/mtibben/confusables"
	"golang.org/x/text/unicode/norm"
)

func isASCIIOnly(text string) bool {
	for i := 0; i < len(text); i++ {
		if text[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// A-Za-z0-9 plus both the standard and URL-safe extras.
func isBase64Char(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '+' || c == '/' || c == '-' || c == '_'
}

// containsSuspiciousBase64 scans for runs of 20+ base64 characters that
// decode to readable text.
func containsSuspiciousBase64(input string) bool {
	n := len(input)
	i := 0

	for i < n {
		if !isBase64Char(input[i]) {
			i++
			continue
		}

		start := i
		for i < n && isBase64Char(input[i]) {
			i++
		}
		padding := 0
		for i < n && input[i] == '=' && padding < 2 {
			i++
			padding++
		}

		if i-start < 20 {
			continue
		}

		decoded, err := tryDecodeBase64(input[start:i])
		if err != nil {
			continue
		}
		if isReadableText(decoded) {
			return true
		}
	}

	return false
}

// tryDecodeBase64 maps URL-safe characters to the standard alphabet and pads before decoding.
func tryDecodeBase64(s string) ([]byte, error) {
	n := len(s)
	if n == 0 {
		return nil, fmt.Errorf("base64 decode: empty input")
	}

	s = strings.TrimRight(s, "=")
	n = len(s)
	padNeeded := (4 - n%4) % 4
	buf := make([]byte, n+padNeeded)
	for i := 0; i < n; i++ {
		switch s[i] {
		case '-':
			buf[i] = '+'
		case '_':
			buf[i] = '/'
		default:
			buf[i] = s[i]
		}
	}
	for i := 0; i < padNeeded; i++ {
		buf[n+i] = '='
	}

	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(buf)))
	written, err := base64.StdEncoding.Decode(decoded, buf)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	return decoded[:written], nil
}

// isReadableText requires valid UTF-8 with more than 90% printable or space runes.
func isReadableText(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	printable, total := 0, 0
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		i += size
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}

	return total > 0 && printable*100 > total*90
}

// normalizeText folds apostrophes and drops format/control runes. Non-ASCII
// input also goes through NFC, the homoglyph skeleton and NFKC.
func normalizeText(text string) string {
	text = foldApostrophes(text)
	if isASCIIOnly(text) {
		return stripControlChars(text)
	}

	skeleton := confusables.Skeleton(norm.NFC.String(text))
	return stripControlChars(norm.NFKC.String(skeleton))
}

// plainText is the matching variant without the skeleton step, so Cyrillic
// phrases still match Cyrillic input.
func plainText(text string) string {
	return stripControlChars(norm.NFKC.String(foldApostrophes(text)))
}

// Uzbek Latin writes o‘/g‘ with several apostrophe look-alikes.
var apostropheReplacer = strings.NewReplacer(
	"ʻ", "'", // modifier letter turned comma
	"ʼ", "'", // modifier letter apostrophe
	"‘", "'",
	"’", "'",
	"`", "'",
)

func foldApostrophes(text string) string {
	if isASCIIOnly(text) && !strings.Contains(text, "`") {
		return text
	}
	return apostropheReplacer.Replace(text)
}

// Format and control runes, except whitespace such as newlines and tabs.
func isControl(r rune) bool {
	return (unicode.Is(unicode.Cf, r) || unicode.Is(unicode.Cc, r)) && !unicode.IsSpace(r)
}

func stripControlChars(text string) string {
	if strings.IndexFunc(text, isControl) < 0 {
		return text
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range text {
		if isControl(r) {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// stripEmoji removes emoji so reactions like "Rahmat 🙏" score like plain text.
func stripEmoji(text string) string {
	if isASCIIOnly(text) || !gomoji.ContainsEmoji(text) {
		return text
	}
	return gomoji.RemoveEmojis(text)
}

func trimForLog(value string) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) <= 50 {
		return value
	}
	return string([]rune(value)[:50])
}
