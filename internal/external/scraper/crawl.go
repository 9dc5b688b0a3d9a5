package scraper

import (
	"context"

	"go.uber.org/zap"
)

// PageFetcher загружает одну страницу
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (string, error)
}

// SiteCrawler обходит ограниченный набор страниц одного сайта
type SiteCrawler struct {
	fetcher   PageFetcher
	extractor *LinkExtractor
	maxPages  int
	logger    *zap.Logger
}

// NewSiteCrawler создает обходчик сайта
func NewSiteCrawler(fetcher PageFetcher, extractor *LinkExtractor, maxPages int, logger *zap.Logger) *SiteCrawler {
	if maxPages < 1 {
		maxPages = 1
	}
	return &SiteCrawler{
		fetcher:   fetcher,
		extractor: extractor,
		maxPages:  maxPages,
		logger:    logger,
	}
}

// Crawl загружает главную страницу и до maxPages-1 подстраниц.
// Ошибка главной страницы возвращается, ошибки подстраниц только логируются.
func (c *SiteCrawler) Crawl(ctx context.Context, homepage string) ([]Page, error) {
	html, err := c.fetcher.FetchPage(ctx, homepage)
	if err != nil {
		return nil, err
	}
	pages := []Page{{URL: homepage, HTML: html}}

	if c.maxPages == 1 {
		return pages, nil
	}

	links, err := c.extractor.ExtractLinks(html, homepage)
	if err != nil {
		c.logger.Warn("Failed to extract links from homepage", zap.String("url", homepage), zap.Error(err))
		return pages, nil
	}

	for _, sub := range c.extractor.FindSubpages(links, homepage, c.maxPages-1) {
		if ctx.Err() != nil {
			break
		}
		subHTML, err := c.fetcher.FetchPage(ctx, sub)
		if err != nil {
			c.logger.Debug("Skipping subpage", zap.String("url", sub), zap.Error(err))
			continue
		}
		pages = append(pages, Page{URL: sub, HTML: subHTML})
	}

	return pages, nil
}
