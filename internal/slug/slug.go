// Package slug 从名称生成 URL 安全的 slug。
//
// 生成结果只包含 [a-z0-9] 与单个连字符，首尾没有连字符；同一输入永远得到同一结果，
// 对结果再次生成不会变化。客户端是 slug 的唯一来源：提交前总是由名称重新生成。
package slug

import (
	"regexp"
	"strings"
	"unicode"

	gosimple "github.com/gosimple/slug"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	grammar  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// Make 由名称生成 slug，例如 "Amphi Économie & Gestion" -> "amphi-economie-gestion"
func Make(name string) string {
	// 符号先换成空格：gosimple 会把 & 和 @ 译成 and / at
	s := gosimple.Make(strings.Map(keepLetters, name))
	// gosimple 会保留下划线
	s = nonAlnum.ReplaceAllString(s, "-")
	return trimHyphens(s)
}

// Valid slug 是否满足语法
func Valid(s string) bool {
	return grammar.MatchString(s)
}

// keepLetters 保留字母、数字和组合附加符号（交给 gosimple 转写），其余一律视为分隔符
func keepLetters(r rune) rune {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
		return r
	}
	return ' '
}

func trimHyphens(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == '-' {
		start++
	}
	for end > start && s[end-1] == '-' {
		end--
	}
	return s[start:end]
}
