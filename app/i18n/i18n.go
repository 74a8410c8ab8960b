package i18n

import (
	"fmt"

	"golang.org/x/text/language"
)

// DefaultLanguage 缺省语言
const DefaultLanguage = "en"

var tags = []language.Tag{
	language.English, // 第一项作为匹配失败时的回落
	language.Spanish,
	language.Hindi,
}

var matcher = language.NewMatcher(tags)

// Supported 支持的语言代码
func Supported() []string {
	codes := make([]string, len(tags))
	for i, t := range tags {
		base, _ := t.Base()
		codes[i] = base.String()
	}
	return codes
}

// Match 把客户端语言（如 es-MX、hi-IN）映射到支持的语言
func Match(lang string) string {
	if lang == "" {
		return DefaultLanguage
	}
	if _, ok := catalog[lang]; ok {
		return lang
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return DefaultLanguage
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return DefaultLanguage
	}
	base, _ := tags[idx].Base()
	return base.String()
}

// T 取文案并格式化，缺失时依次回落到英文和键名
func T(lang, key string, args ...any) string {
	msg, ok := catalog[lang][key]
	if !ok {
		if msg, ok = catalog[DefaultLanguage][key]; !ok {
			msg = key
		}
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Has 文案是否存在于英文目录
func Has(key string) bool {
	_, ok := catalog[DefaultLanguage][key]
	return ok
}
