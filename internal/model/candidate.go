// Package model содержит модели данных.
//
// Группа: TRANSIENT - Промежуточные результаты сканирования
// Содержит: TourCandidate, FoundTourCandidate, LinkValidationResult, ScanOutcome
package model

// CandidateOrigin - откуда пришел кандидат
type CandidateOrigin string

const (
	OriginExtractor CandidateOrigin = "extractor"
	OriginAI        CandidateOrigin = "ai"
)

// TourCandidate - сырой кандидат перед проверкой ссылки
type TourCandidate struct {
	Provider  TourProvider
	URL       string
	Latitude  *float64
	Longitude *float64
	Address   string
	Origin    CandidateOrigin
}

// FoundTourCandidate - подсказка модели. Никогда не сохраняется напрямую.
type FoundTourCandidate struct {
	Provider   TourProvider `json:"provider"`
	URL        string       `json:"url"`
	Latitude   *float64     `json:"latitude,omitempty"`
	Longitude  *float64     `json:"longitude,omitempty"`
	Address    string       `json:"address,omitempty"`
	Confidence float64      `json:"confidence"`
	Reason     string       `json:"reason"`
}

// ToCandidate конвертирует подсказку модели в кандидата
func (c FoundTourCandidate) ToCandidate() TourCandidate {
	return TourCandidate{
		Provider:  c.Provider,
		URL:       c.URL,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Address:   c.Address,
		Origin:    OriginAI,
	}
}

// LinkValidationResult - результат проверки одной ссылки
type LinkValidationResult struct {
	Valid      bool
	URL        string
	Provider   TourProvider
	Latitude   *float64
	Longitude  *float64
	Address    string
	StatusCode int
	Error      string
}

// ToSource конвертирует результат проверки в слот тура
func (r LinkValidationResult) ToSource() *TourSource {
	return &TourSource{
		URL:       r.URL,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Address:   r.Address,
		Available: r.Valid,
	}
}

// ScanOutcome - итог сканирования одного университета (только для отчета)
type ScanOutcome struct {
	UniversityID   int64
	UniversityName string
	Success        bool
	Skipped        bool
	SourcesFound   int
	Primary        TourProvider
	Error          string
}
