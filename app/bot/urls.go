package bot

import (
	"net/url"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+|www\.[^\s<>"]+`)

// ExtractURLs 提取消息中的链接，去重并保持顺序
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:!?)")
		if strings.HasPrefix(m, "www.") {
			m = "https://" + m
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Supported 链接的主机名是否包含支持的平台关键字，列表为空时全部允许
func Supported(rawURL string, platforms []string) bool {
	if len(platforms) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range platforms {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" && strings.Contains(host, p) {
			return true
		}
	}
	return false
}
