package services

import (
	"strings"
)

// SegmentDelimiter はチャット表示用の区切り
const SegmentDelimiter = "|||"

const maxSegments = 3

// 意図ごとの最大メッセージ数
var segmentLimits = map[string]int{
	IntentGreeting:       2,
	IntentGratitude:      1,
	IntentAcknowledgment: 2,
}

// CleanReply は LLM の出力を表示用のメッセージ列に整える
func CleanReply(raw, intent string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, SegmentDelimiter)
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"“”`)
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		segments = append(segments, stripTrailingPeriod(p))
	}

	limit := maxSegments
	if l, ok := segmentLimits[intent]; ok {
		limit = l
	}
	if len(segments) > limit {
		segments = segments[:limit]
	}
	return segments
}

// stripTrailingPeriod は末尾の "." を1つだけ落とす ("..." や "?" "!" はそのまま)
func stripTrailingPeriod(s string) string {
	if strings.HasSuffix(s, "..") || !strings.HasSuffix(s, ".") {
		return s
	}
	return strings.TrimSpace(strings.TrimSuffix(s, "."))
}

func JoinSegments(segments []string) string {
	return strings.Join(segments, SegmentDelimiter)
}
