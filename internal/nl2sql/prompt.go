package nl2sql

import "strings"

// PromptTemplate has exactly two slots, {schema} and {input}. User text is
// substituted as-is; nothing guards against prompt injection.
const PromptTemplate = `You are an expert SQL database engineer. Convert this natural language command into a valid SQLite SQL query.

Database schema:
{schema}

Command: {input}

Provide only the SQL query without any explanation or additional text. Ensure it's valid SQLite syntax.`

// BuildPrompt fills both slots in a single pass, so slot markers inside the
// schema or the request are never expanded a second time.
func BuildPrompt(schema, input string) string {
	return strings.NewReplacer("{schema}", schema, "{input}", input).Replace(PromptTemplate)
}
