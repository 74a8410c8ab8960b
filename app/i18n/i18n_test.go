package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	assert.Equal(t, "en", Match(""))
	assert.Equal(t, "es", Match("es"))
	assert.Equal(t, "es", Match("es-MX"))
	assert.Equal(t, "hi", Match("hi-IN"))
	assert.Equal(t, "en", Match("en-GB"))
	assert.Equal(t, "en", Match("not a tag!"))
}

func TestTFallsBack(t *testing.T) {
	assert.Equal(t, "❌ Cancelar", T("es", "cancel"))
	// 西语目录缺失的键回落到英文
	assert.Equal(t, T("en", "admin_only"), T("es", "admin_only"))
	assert.Equal(t, "missing_key", T("en", "missing_key"))
	assert.Equal(t, "Total users: 3", T("xx", "total_users", 3))
}

func TestEveryTranslationHasEnglishSource(t *testing.T) {
	for lang, msgs := range catalog {
		for key := range msgs {
			assert.True(t, Has(key), "%s: %s has no english source", lang, key)
		}
	}
}

func TestSupported(t *testing.T) {
	assert.Equal(t, []string{"en", "es", "hi"}, Supported())
}
