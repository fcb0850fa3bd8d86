package game

import "strings"

// AnswerMatcher 答案存储与比对
type AnswerMatcher interface {
	// Normalize 返回写入会话的答案形式
	Normalize(answer string) string
	// Match 判断猜测是否命中已存储的答案
	Match(stored, guess string) bool
}

// PlainMatcher 明文小写比对
type PlainMatcher struct{}

// Normalize 转小写
func (PlainMatcher) Normalize(answer string) string {
	return strings.ToLower(answer)
}

// Match 大小写不敏感比对
func (PlainMatcher) Match(stored, guess string) bool {
	return stored != "" && strings.ToLower(guess) == stored
}
