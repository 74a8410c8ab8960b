package bot

import (
	"strings"
	"testing"

	"vidrelay/app/model"
	"vidrelay/app/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsKeyboardShowsValues(t *testing.T) {
	u := model.NewBotUser(1, "en")
	u.Compression = true

	kb := SettingsKeyboard(u)
	var toggles []service.Button
	for _, row := range kb {
		for _, b := range row {
			if strings.HasPrefix(b.Data, cbToggle) {
				toggles = append(toggles, b)
			}
		}
	}
	require.Len(t, toggles, len(service.Toggles))
	assert.Equal(t, "🗜️ Compression: On", toggles[0].Text)
	assert.Equal(t, cbToggle+"compression", toggles[0].Data)

	last := kb[len(kb)-1]
	assert.Equal(t, cbClose, last[0].Data)

	// 回调数据不超过 64 字节
	for _, row := range kb {
		for _, b := range row {
			assert.LessOrEqual(t, len(b.Data), 64)
		}
	}
}

func TestQualityKeyboard(t *testing.T) {
	kb := QualityKeyboard("en")
	assert.Equal(t, "Ask", kb[0][0].Text)
	assert.Equal(t, cbQuality+":", kb[0][0].Data)
	assert.Equal(t, cbMenu, kb[len(kb)-1][0].Data)
}

func TestJoinKeyboard(t *testing.T) {
	kb := JoinKeyboard("en", []string{"@news"})
	require.Len(t, kb, 2)
	assert.Equal(t, "https://t.me/news", kb[0][0].URL)
	assert.Equal(t, cbJoined, kb[1][0].Data)
}
