package intake

import "unicode/utf8"

// clamp 截取 s 的前 n 个字符（按 rune 计）。
func clamp(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// tail 保留 s 末尾至多 n 个字节，切点落在 rune 边界上。
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}
