package task

import (
	"crypto/md5"
	"encoding/hex"
)

// TokenLength 短令牌长度，回调数据有 64 字节上限
const TokenLength = 10

// ShortToken 由任务 ID 派生的短令牌
func ShortToken(taskID string) string {
	sum := md5.Sum([]byte(taskID))
	return hex.EncodeToString(sum[:])[:TokenLength]
}

// Resolve 在候选 ID 中查找与令牌匹配的任务
func Resolve(token string, ids []string) (string, bool) {
	if len(token) != TokenLength {
		return "", false
	}
	for _, id := range ids {
		if ShortToken(id) == token {
			return id, true
		}
	}
	return "", false
}
