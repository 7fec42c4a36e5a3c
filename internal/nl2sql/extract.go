package nl2sql

import "strings"

var statementKeywords = map[string]struct{}{
	"select": {}, "with": {}, "insert": {}, "update": {}, "delete": {},
	"create": {}, "drop": {}, "alter": {}, "truncate": {}, "replace": {},
	"pragma": {}, "explain": {}, "values": {},
}

// ExtractStatement reduces a model reply to the single statement that will
// be executed: markdown fences and leading prose are dropped and only the
// first ';'-terminated statement is kept.
func ExtractStatement(reply string) string {
	text := stripMarkdownSQL(reply)
	text = skipLeadingProse(text)
	return firstStatement(text)
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}
	body := trimmed[start+3:]
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		// drop the info string, e.g. ```sql
		if !strings.ContainsAny(body[:newline], " \t;") {
			body = body[newline+1:]
		}
	} else {
		body = strings.TrimPrefix(body, "sql")
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func skipLeadingProse(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		candidate := strings.TrimSpace(line)
		lower := strings.ToLower(candidate)
		if strings.HasPrefix(lower, "sql:") {
			candidate = strings.TrimSpace(candidate[len("sql:"):])
			lower = strings.ToLower(candidate)
		}
		if _, ok := statementKeywords[firstWord(lower)]; ok {
			rest := append([]string{candidate}, lines[i+1:]...)
			return strings.TrimSpace(strings.Join(rest, "\n"))
		}
	}
	return strings.TrimSpace(text)
}

func firstStatement(text string) string {
	var quote rune
	for i, r := range text {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == ';':
			return strings.TrimSpace(text[:i])
		}
	}
	return strings.TrimSpace(text)
}

func firstWord(text string) string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '(' || r == '\n'
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
