package bot

import (
	"strings"

	"vidrelay/app/i18n"
	"vidrelay/app/model"
	"vidrelay/app/service"
)

// 设置菜单回调
const (
	cbSettings = "set:"
	cbMenu     = "set:menu"
	cbClose    = "set:close"
	cbLang     = "set:lang"
	cbQuality  = "set:quality"
	cbFormat   = "set:format"
	cbToggle   = "set:toggle:"
	cbJoined   = "joined"
)

// 默认清晰度菜单中的选项
var qualityOptions = []string{model.QualityAsk, model.QualityBest, "1080p", "720p", "480p", model.QualityAudio}

var containerOptions = []string{model.ContainerMP4, model.ContainerMKV, model.ContainerWebM}

// 开关对应的文案键
var toggleLabels = map[service.Setting]string{
	service.SettingCompression:   "set_compression",
	service.SettingEditMetadata:  "set_metadata",
	service.SettingRenameFile:    "set_rename",
	service.SettingMultiAudio:    "set_multi_audio",
	service.SettingBurnSubtitles: "set_subtitles",
	service.SettingSendSubtitle:  "set_send_subtitle",
	service.SettingSendThumbnail: "set_send_thumbnail",
	service.SettingSendPreview:   "set_preview",
}

func onOff(lang string, v bool) string {
	if v {
		return i18n.T(lang, "on")
	}
	return i18n.T(lang, "off")
}

func qualityLabel(lang, q string) string {
	switch q {
	case model.QualityAsk:
		return i18n.T(lang, "ask")
	case model.QualityBest:
		return i18n.T(lang, "quality_best")
	case model.QualityAudio:
		return i18n.T(lang, "quality_audio")
	default:
		return q
	}
}

// SettingsKeyboard 主设置菜单，按钮上显示当前值
func SettingsKeyboard(u *model.BotUser) service.Keyboard {
	lang := u.Language
	kb := service.Keyboard{
		{
			{Text: i18n.T(lang, "set_language") + ": " + strings.ToUpper(lang), Data: cbLang},
			{Text: i18n.T(lang, "set_quality") + ": " + qualityLabel(lang, u.DefaultQuality), Data: cbQuality},
		},
		{
			{Text: i18n.T(lang, "set_format") + ": " + u.Container(), Data: cbFormat},
		},
	}

	var row []service.Button
	for _, s := range service.Toggles {
		row = append(row, service.Button{
			Text: i18n.T(lang, toggleLabels[s]) + ": " + onOff(lang, s.Value(u)),
			Data: cbToggle + string(s),
		})
		if len(row) == 2 {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	return append(kb, []service.Button{{Text: i18n.T(lang, "close"), Data: cbClose}})
}

func withBack(lang string, kb service.Keyboard) service.Keyboard {
	return append(kb, []service.Button{{Text: i18n.T(lang, "back"), Data: cbMenu}})
}

// LanguageKeyboard 语言选择
func LanguageKeyboard(lang string) service.Keyboard {
	var row []service.Button
	for _, code := range i18n.Supported() {
		row = append(row, service.Button{Text: strings.ToUpper(code), Data: cbLang + ":" + code})
	}
	return withBack(lang, service.Keyboard{row})
}

// QualityKeyboard 默认清晰度选择
func QualityKeyboard(lang string) service.Keyboard {
	kb := service.Keyboard{}
	var row []service.Button
	for _, q := range qualityOptions {
		row = append(row, service.Button{Text: qualityLabel(lang, q), Data: cbQuality + ":" + q})
		if len(row) == 3 {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	return withBack(lang, kb)
}

// FormatKeyboard 上传容器选择
func FormatKeyboard(lang string) service.Keyboard {
	var row []service.Button
	for _, c := range containerOptions {
		row = append(row, service.Button{Text: strings.ToUpper(c), Data: cbFormat + ":" + c})
	}
	return withBack(lang, service.Keyboard{row})
}

// JoinKeyboard 强制关注的频道按钮
func JoinKeyboard(lang string, channels []string) service.Keyboard {
	kb := service.Keyboard{}
	for _, ch := range channels {
		name := strings.TrimPrefix(ch, "@")
		kb = append(kb, []service.Button{{Text: i18n.T(lang, "join_button", name), URL: "https://t.me/" + name}})
	}
	return append(kb, []service.Button{{Text: i18n.T(lang, "i_have_joined"), Data: cbJoined}})
}
