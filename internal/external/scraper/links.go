package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"

	"tourscan/internal/model"
)

// TourKeywords - ключевые слова виртуального тура (en, ru, kk)
var TourKeywords = []string{
	"tour",
	"virtual",
	"panorama",
	"campus",
	"360",
	"3d",
	"тур",
	"экскурсия",
	"панорама",
	"кампус",
	"виртуальн",
	"виртуалды",
	"саяхат",
}

// NavigationKeywords - подстраницы, где обычно лежит ссылка на тур
var NavigationKeywords = []string{
	"about",
	"campus",
	"contacts",
	"о нас",
	"об университете",
	"университет",
	"кампус",
	"контакты",
	"біз туралы",
	"байланыс",
}

// containsAny проверяет вхождение любого ключевого слова без учета регистра.
// cases.Caser хранит состояние, поэтому создается на каждый вызов.
func containsAny(text string, keywords []string) bool {
	folder := cases.Fold()
	folded := folder.String(text)
	for _, kw := range keywords {
		if strings.Contains(folded, folder.String(kw)) {
			return true
		}
	}
	return false
}

// LinkExtractor находит ссылки-кандидаты на странице
type LinkExtractor struct {
	table *model.ProviderTable
}

// NewLinkExtractor создает экстрактор ссылок
func NewLinkExtractor(table *model.ProviderTable) *LinkExtractor {
	if table == nil {
		table = model.DefaultProviderTable()
	}
	return &LinkExtractor{table: table}
}

// ExtractLinks возвращает ссылки <a href> и <iframe src> страницы.
// Относительные ссылки разрешаются относительно baseURL, если он задан.
func (e *LinkExtractor) ExtractLinks(pageHTML, baseURL string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var base *url.URL
	if baseURL != "" {
		base, _ = url.Parse(baseURL)
	}

	var links []Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href = resolve(base, href); href == "" {
			return
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			text, _ = s.Attr("title")
		}
		links = append(links, Link{Href: href, Text: text, Kind: LinkAnchor})
	})

	doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src = resolve(base, src); src == "" {
			return
		}
		title, _ := s.Attr("title")
		links = append(links, Link{Href: src, Text: title, Kind: LinkIframe})
	})

	return links, nil
}

// resolve нормализует ссылку и отбрасывает якоря, mailto, tel и javascript
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		u.Scheme = "https"
	}
	return u.String()
}

// FindTourLinks оставляет ссылки с ключевым словом в тексте/адресе или с хостом провайдера
func (e *LinkExtractor) FindTourLinks(links []Link) []Link {
	var out []Link
	for _, link := range links {
		if containsAny(link.Text, TourKeywords) || containsAny(link.Href, TourKeywords) {
			out = append(out, link)
			continue
		}
		if _, ok := e.table.Detect(link.Href); ok {
			out = append(out, link)
		}
	}
	return out
}

// FindMapURLs оставляет только ссылки с хостом провайдера, без повторов
func (e *LinkExtractor) FindMapURLs(links []Link) []MapURL {
	seen := make(map[string]bool)
	var out []MapURL
	for _, link := range links {
		provider, ok := e.table.Detect(link.Href)
		if !ok || seen[link.Href] {
			continue
		}
		seen[link.Href] = true
		out = append(out, MapURL{URL: link.Href, Provider: provider})
	}
	return out
}

// FindSubpages выбирает ссылки того же сайта для ограниченного обхода.
// Ссылки с ключевыми словами тура идут первыми, затем навигационные.
func (e *LinkExtractor) FindSubpages(links []Link, pageURL string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	host := strings.TrimPrefix(strings.ToLower(page.Hostname()), "www.")

	seen := map[string]bool{normalizePageURL(page): true}
	var tourPages, navPages []string
	for _, link := range links {
		if link.Kind != LinkAnchor {
			continue
		}
		u, err := url.Parse(link.Href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		if strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.") != host {
			continue
		}
		key := normalizePageURL(u)
		if seen[key] {
			continue
		}

		switch {
		case containsAny(link.Text, TourKeywords) || containsAny(u.Path, TourKeywords):
			tourPages = append(tourPages, link.Href)
		case containsAny(link.Text, NavigationKeywords) || containsAny(u.Path, NavigationKeywords):
			navPages = append(navPages, link.Href)
		default:
			continue
		}
		seen[key] = true
	}

	out := append(tourPages, navPages...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func normalizePageURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.Host = strings.TrimPrefix(strings.ToLower(c.Host), "www.")
	c.Scheme = ""
	return strings.TrimSuffix(c.String(), "/")
}

// BuildExcerpt возвращает HTML тела страницы без скриптов и стилей
func BuildExcerpt(pageHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return pageHTML
	}
	doc.Find("script, style, noscript, svg, link, meta").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	out, err := body.Html()
	if err != nil {
		return pageHTML
	}
	return strings.Join(strings.Fields(out), " ")
}
