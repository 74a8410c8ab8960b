package service

import (
	"sort"

	"vidrelay/app/model"
)

// 音频格式选择器
const audioSelector = "bestaudio/best"

// videoCandidates 带分辨率的视频格式，保持原顺序
func videoCandidates(formats []model.MediaFormat) []model.MediaFormat {
	out := make([]model.MediaFormat, 0, len(formats))
	for _, f := range formats {
		if f.HasVideo() && f.Height > 0 {
			out = append(out, f)
		}
	}
	return out
}

// QualityChoices 可选清晰度标签，从高到低去重
func QualityChoices(formats []model.MediaFormat) []string {
	seen := make(map[int]bool)
	var heights []int
	for _, f := range videoCandidates(formats) {
		if !seen[f.Height] {
			seen[f.Height] = true
			heights = append(heights, f.Height)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(heights)))

	labels := make([]string, len(heights))
	for i, h := range heights {
		labels[i] = model.MediaFormat{Height: h}.Label()
	}
	return labels
}

// SelectFormat 选择格式：取第一个标签完全匹配的候选，否则取最佳
func SelectFormat(requested string, formats []model.MediaFormat) (model.MediaFormat, error) {
	candidates := videoCandidates(formats)
	if len(candidates) == 0 {
		return model.MediaFormat{}, ErrNoFormats
	}

	if requested != "" && requested != model.QualityBest {
		for _, f := range candidates {
			if f.Label() == requested {
				return f, nil
			}
		}
	}

	best := candidates[0]
	for _, f := range candidates[1:] {
		if better(f, best) {
			best = f
		}
	}
	return best, nil
}

// better 分辨率优先，其次码率，再次自带音频
func better(a, b model.MediaFormat) bool {
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	if a.TBR != b.TBR {
		return a.TBR > b.TBR
	}
	return a.HasAudio() && !b.HasAudio()
}

// FormatSelector 转换为 yt-dlp 格式选择器，纯视频流补上最佳音频
func FormatSelector(f model.MediaFormat) string {
	if f.HasAudio() {
		return f.ID
	}
	return f.ID + "+bestaudio/best"
}
