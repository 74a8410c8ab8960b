package service

import (
	"testing"

	"vidrelay/app/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFormats() []model.MediaFormat {
	return []model.MediaFormat{
		{ID: "140", Ext: "m4a", VCodec: "none", ACodec: "mp4a"},
		{ID: "160", Ext: "mp4", Height: 144, VCodec: "avc1", ACodec: "none", TBR: 100},
		{ID: "136", Ext: "mp4", Height: 720, VCodec: "avc1", ACodec: "none", TBR: 1500},
		{ID: "22", Ext: "mp4", Height: 720, VCodec: "avc1", ACodec: "mp4a", TBR: 1200},
		{ID: "137", Ext: "mp4", Height: 1080, VCodec: "avc1", ACodec: "none", TBR: 3000},
	}
}

func TestQualityChoices(t *testing.T) {
	assert.Equal(t, []string{"1080p", "720p", "144p"}, QualityChoices(sampleFormats()))
	assert.Empty(t, QualityChoices([]model.MediaFormat{{ID: "140", VCodec: "none", ACodec: "mp4a"}}))
}

func TestSelectFormat(t *testing.T) {
	tests := []struct {
		requested string
		wantID    string
	}{
		{"720p", "136"}, // 第一个匹配
		{"144p", "160"},
		{"1080p", "137"},
		{"best", "137"},
		{"", "137"},
		{"480p", "137"}, // 无匹配回落到最佳
	}
	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			f, err := SelectFormat(tt.requested, sampleFormats())
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, f.ID)
		})
	}
}

func TestSelectFormatIsDeterministic(t *testing.T) {
	formats := sampleFormats()
	first, err := SelectFormat("360p", formats)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := SelectFormat("360p", formats)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSelectFormatTieBreak(t *testing.T) {
	formats := []model.MediaFormat{
		{ID: "a", Height: 720, VCodec: "vp9", ACodec: "none", TBR: 900},
		{ID: "b", Height: 720, VCodec: "avc1", ACodec: "mp4a", TBR: 900},
	}
	f, err := SelectFormat("best", formats)
	require.NoError(t, err)
	assert.Equal(t, "b", f.ID)
}

func TestSelectFormatNoCandidates(t *testing.T) {
	_, err := SelectFormat("720p", nil)
	assert.ErrorIs(t, err, ErrNoFormats)
}

func TestFormatSelector(t *testing.T) {
	assert.Equal(t, "137+bestaudio/best", FormatSelector(model.MediaFormat{ID: "137", VCodec: "avc1", ACodec: "none"}))
	assert.Equal(t, "22", FormatSelector(model.MediaFormat{ID: "22", VCodec: "avc1", ACodec: "mp4a"}))
}
