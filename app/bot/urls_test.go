package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURLs(t *testing.T) {
	text := "look https://youtu.be/abc, and www.vimeo.com/1 plus https://youtu.be/abc again."
	assert.Equal(t, []string{"https://youtu.be/abc", "https://www.vimeo.com/1"}, ExtractURLs(text))
	assert.Empty(t, ExtractURLs("no links here"))
}

func TestSupported(t *testing.T) {
	platforms := []string{"youtube", "youtu.be", "x.com"}
	assert.True(t, Supported("https://www.youtube.com/watch?v=1", platforms))
	assert.True(t, Supported("https://youtu.be/1", platforms))
	assert.True(t, Supported("https://x.com/a/status/1", platforms))
	assert.False(t, Supported("https://example.com/youtube", platforms))
	assert.False(t, Supported("not a url", platforms))
	assert.True(t, Supported("https://example.com", nil))
}
