package assets

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatMessage substitutes {i} placeholders with the positional arguments
// and resolves {i,choice,limit1#text1|limit2#text2|...} selections the way
// translated competition strings expect: the chosen segment is the one with
// the largest limit not exceeding the numeric argument.
func FormatMessage(pattern string, args ...any) string {
	var out strings.Builder
	for i := 0; i < len(pattern); {
		open := strings.IndexByte(pattern[i:], '{')
		if open < 0 {
			out.WriteString(pattern[i:])
			break
		}
		open += i
		out.WriteString(pattern[i:open])
		end := matchingBrace(pattern, open)
		if end < 0 {
			out.WriteString(pattern[open:])
			break
		}
		out.WriteString(expandPlaceholder(pattern[open+1:end], args))
		i = end + 1
	}
	return out.String()
}

// matchingBrace returns the index of the '}' closing the '{' at open,
// skipping over nested brace pairs, or -1 when unbalanced.
func matchingBrace(pattern string, open int) int {
	depth := 0
	for i := open; i < len(pattern); i++ {
		switch pattern[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func expandPlaceholder(body string, args []any) string {
	parts := strings.SplitN(body, ",", 3)
	index, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || index < 0 || index >= len(args) {
		return "{" + body + "}"
	}
	arg := args[index]
	if len(parts) == 3 && strings.TrimSpace(parts[1]) == "choice" {
		// Chosen segments may themselves carry placeholders.
		return FormatMessage(chooseSegment(parts[2], toFloat(arg)), args...)
	}
	return fmt.Sprint(arg)
}

func chooseSegment(spec string, value float64) string {
	chosen := ""
	for _, segment := range strings.Split(spec, "|") {
		limitText, text, ok := strings.Cut(segment, "#")
		if !ok {
			continue
		}
		limit, err := strconv.ParseFloat(strings.TrimSpace(limitText), 64)
		if err != nil {
			continue
		}
		if chosen == "" || value >= limit {
			chosen = text
		}
		if value < limit {
			break
		}
	}
	return chosen
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		return ParseFormattedNumber(t)
	default:
		return 0
	}
}

// ParseFormattedNumber parses competition-formatted numbers, tolerating comma
// decimal separators. Empty strings and the "-" placeholder parse as zero.
func ParseFormattedNumber(s string) float64 {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || trimmed == "-" {
		return 0
	}
	trimmed = strings.ReplaceAll(trimmed, ",", ".")
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0
	}
	return value
}

// FormatCategoryDisplay rewrites a leading ">" into the "+" superheavy
// notation (">109" becomes "+109").
func FormatCategoryDisplay(s string) string {
	if strings.HasPrefix(s, ">") {
		return "+" + s[1:]
	}
	return s
}
