// Package report формирует Markdown отчет о прогоне сканирования туров.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tourscan/internal/model"
)

// Params - параметры прогона
type Params struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Limit        int
	Offset       int
	Workers      int
	UseAI        bool
	SkipExisting bool
	DryRun       bool
	Backend      string
}

// Summary - данные отчета
type Summary struct {
	Params
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
	// Interrupted - сколько университетов не просканировано из-за прерывания
	Interrupted       int
	SourcesByProvider map[model.TourProvider]int
	// ForbiddenVerdicts - сколько ссылок признаны живыми только по ответу 403
	ForbiddenVerdicts int
	Outcomes          []model.ScanOutcome
}

// FailedOutcomes возвращает неудачные итоги в исходном порядке
func (s Summary) FailedOutcomes() []model.ScanOutcome {
	var failed []model.ScanOutcome
	for _, o := range s.Outcomes {
		if !o.Success && !o.Skipped {
			failed = append(failed, o)
		}
	}
	return failed
}

// FileName возвращает имя файла отчета по дате прогона
func FileName(t time.Time) string {
	return fmt.Sprintf("tour-scan-%s.md", t.Format("2006-01-02"))
}

// Render формирует Markdown отчет
func Render(s Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Отчет о поиске виртуальных туров (%s)\n\n", s.StartedAt.Format("2006-01-02"))

	b.WriteString("## Параметры\n\n")
	fmt.Fprintf(&b, "- Run ID: `%s`\n", s.RunID)
	fmt.Fprintf(&b, "- Начало: %s\n", s.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Длительность: %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	fmt.Fprintf(&b, "- Лимит: %d, смещение: %d, воркеры: %d\n", s.Limit, s.Offset, max(s.Workers, 1))
	fmt.Fprintf(&b, "- AI анализ: %s", yesNo(s.UseAI))
	if s.UseAI && s.Backend != "" {
		fmt.Fprintf(&b, " (%s)", s.Backend)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Пропуск университетов с туром: %s\n", yesNo(s.SkipExisting))
	if s.DryRun {
		b.WriteString("- Пробный прогон: результаты не сохранены\n")
	}

	b.WriteString("\n## Итоги\n\n")
	b.WriteString("| Обработано | Успешно | С ошибкой | Пропущено |\n")
	b.WriteString("|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n", s.Processed, s.Succeeded, s.Failed, s.Skipped)
	if s.Interrupted > 0 {
		fmt.Fprintf(&b, "\nПрогон прерван, не просканировано университетов: %d\n", s.Interrupted)
	}

	if len(s.SourcesByProvider) > 0 {
		b.WriteString("\n### Источники по провайдерам\n\n")
		providers := make([]string, 0, len(s.SourcesByProvider))
		for p := range s.SourcesByProvider {
			providers = append(providers, string(p))
		}
		sort.Strings(providers)
		for _, p := range providers {
			fmt.Fprintf(&b, "- %s: %d\n", p, s.SourcesByProvider[model.TourProvider(p)])
		}
	}
	if s.ForbiddenVerdicts > 0 {
		fmt.Fprintf(&b, "\nСсылок, признанных живыми по ответу 403: %d. Такой вердикт может быть ложноположительным.\n", s.ForbiddenVerdicts)
	}

	if failed := s.FailedOutcomes(); len(failed) > 0 {
		b.WriteString("\n## Ошибки\n\n")
		for _, o := range failed {
			fmt.Fprintf(&b, "- #%d %s: %s\n", o.UniversityID, o.UniversityName, o.Error)
		}
	}

	var found []model.ScanOutcome
	for _, o := range s.Outcomes {
		if o.Success && !o.Skipped && o.SourcesFound > 0 {
			found = append(found, o)
		}
	}
	if len(found) > 0 {
		b.WriteString("\n## Найденные туры\n\n")
		for _, o := range found {
			fmt.Fprintf(&b, "- #%d %s: источников %d, основной %s\n", o.UniversityID, o.UniversityName, o.SourcesFound, o.Primary)
		}
	}

	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "да"
	}
	return "нет"
}
