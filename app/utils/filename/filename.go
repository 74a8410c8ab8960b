package filename

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLen 文件名默认长度上限（字节）
const DefaultMaxLen = 100

// fallback 清理后为空时使用的名字
const fallback = "file"

// forbidden 目标文件系统不允许的字符
const forbidden = `<>:"/\|?*`

// Sanitize 清理文件名：去掉非法字符和变音符号，空白替换为下划线，
// 并按字节截断到 maxLen 以内。对已清理的结果再次调用结果不变。
func Sanitize(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	// 分解后移除组合符号，é -> e
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range folded {
		switch {
		case unicode.IsSpace(r), r == '_':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		case strings.ContainsRune(forbidden, r), unicode.IsControl(r):
			continue
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-':
			b.WriteRune(r)
		default:
			// 其余符号不可移植，直接丢弃
			continue
		}
		lastUnderscore = false
	}

	out := truncate(b.String(), maxLen)
	out = strings.Trim(out, "._- ")
	if out == "" {
		return truncate(fallback, maxLen)
	}
	return out
}

// truncate 按字节截断且不拆开多字节字符
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Build 拼出带扩展名的最终文件名，总长度不超过 maxLen
func Build(base, ext string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	ext = strings.TrimPrefix(Sanitize(strings.TrimPrefix(ext, "."), 16), ".")
	if ext == fallback {
		ext = ""
	}

	budget := maxLen
	if ext != "" {
		budget -= len(ext) + 1
	}
	// 放不下扩展名时只保留主名
	if budget < 1 {
		return Sanitize(base, maxLen)
	}

	name := Sanitize(base, budget)
	if ext == "" {
		return name
	}
	return name + "." + ext
}
