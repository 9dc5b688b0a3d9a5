package llm

import (
	"encoding/json"
	"strings"

	"tourscan/internal/model"
)

// ParseKind - тег результата разбора ответа модели
type ParseKind int

const (
	ParseMalformed ParseKind = iota
	ParseParsed
)

// String возвращает имя тега
func (k ParseKind) String() string {
	if k == ParseParsed {
		return "parsed"
	}
	return "malformed"
}

// AnalysisPayload - JSON объект, который модель должна вернуть
type AnalysisPayload struct {
	FoundTours    []model.FoundTourCandidate `json:"found_tours"`
	BestCandidate *model.FoundTourCandidate  `json:"best_candidate"`
	Analysis      string                     `json:"analysis"`
}

// ParseResult - Parsed(Value) либо Malformed(Raw, Reason)
type ParseResult struct {
	Kind   ParseKind
	Value  AnalysisPayload
	Raw    string
	Reason string
}

// OK сообщает, что ответ разобран
func (r ParseResult) OK() bool {
	return r.Kind == ParseParsed
}

// ParseAnalysis ищет первый JSON объект в тексте ответа и разбирает его.
// Ответ может быть обернут в прозу или markdown блок ```json.
func ParseAnalysis(raw string) ParseResult {
	text := raw
	if start := strings.Index(text, "```"); start != -1 {
		inner := text[start+3:]
		inner = strings.TrimPrefix(inner, "json")
		if end := strings.Index(inner, "```"); end != -1 {
			inner = inner[:end]
		}
		if strings.Contains(inner, "{") {
			text = inner
		}
	}

	object, ok := extractJSONObject(text)
	if !ok {
		return ParseResult{Kind: ParseMalformed, Raw: raw, Reason: "no JSON object in response"}
	}

	var payload AnalysisPayload
	if err := json.Unmarshal([]byte(object), &payload); err != nil {
		return ParseResult{Kind: ParseMalformed, Raw: raw, Reason: "invalid JSON: " + err.Error()}
	}

	return ParseResult{Kind: ParseParsed, Value: payload, Raw: raw}
}

// extractJSONObject возвращает первый сбалансированный фрагмент {...}.
// Скобки внутри строковых литералов не считаются.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
