package model

import "fmt"

// MediaFormat 提取工具探测到的可用格式
type MediaFormat struct {
	ID             string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height"`
	Note           string  `json:"format_note"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	TBR            float64 `json:"tbr"`
}

// Label 清晰度标签，如 720p；纯音频格式为空
func (f MediaFormat) Label() string {
	if f.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dp", f.Height)
}

// Size 文件大小，未知时为 0
func (f MediaFormat) Size() int64 {
	if f.Filesize > 0 {
		return int64(f.Filesize)
	}
	return int64(f.FilesizeApprox)
}

// HasVideo 是否包含视频流
func (f MediaFormat) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

// HasAudio 是否包含音频流
func (f MediaFormat) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// MediaInfo 探测结果
type MediaInfo struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Duration float64       `json:"duration"`
	Uploader string        `json:"uploader"`
	Formats  []MediaFormat `json:"formats"`
}
