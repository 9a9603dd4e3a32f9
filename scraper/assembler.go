package scraper

import (
	"context"
	"log/slog"

	"github.com/aluiziolira/go-product-scraper/markup"
	"github.com/aluiziolira/go-product-scraper/models"
	"github.com/aluiziolira/go-product-scraper/parser"
)

// assembler builds one ProductRecord per listing entry.
type assembler struct {
	fetcher   *Fetcher
	extractor *markup.Extractor
}

// assemble never fails on missing markup; only a transport fault while
// fetching the detail page is returned.
func (a *assembler) assemble(ctx context.Context, node markup.Node, t *tally) (*models.ProductRecord, error) {
	record := &models.ProductRecord{}
	if err := a.titleSection(ctx, node, record, t); err != nil {
		return nil, err
	}
	a.priceSection(node, record)
	return record, nil
}

func (a *assembler) titleSection(ctx context.Context, node markup.Node, record *models.ProductRecord, t *tally) error {
	tl, ok := a.extractor.TitleAndLink(node)
	if !ok {
		return nil
	}
	record.Title = models.StringPtr(parser.NormalizeText(tl.Text))
	if !tl.HasLink {
		return nil
	}

	page, ok, err := a.fetcher.Fetch(ctx, phaseDetail, tl.Href)
	t.request()
	if err != nil {
		return err
	}
	record.DetailURL = page.URL
	if !ok {
		t.unavailable(page.Reason)
		slog.Debug("detail page unavailable",
			slog.String("url", page.URL),
			slog.Int("status", page.StatusCode),
			slog.String("reason", page.Reason),
		)
		return nil
	}

	record.Size = models.StringPtr(parser.FormatSize(page.Size))

	detail, err := markup.Parse(page.Body)
	if err != nil {
		slog.Debug("detail page not parseable", slog.String("url", page.URL), slog.Any("error", err))
		return nil
	}
	text, ok := a.extractor.DetailText(detail)
	if !ok {
		slog.Debug("detail page has no description", slog.String("url", page.URL))
		return nil
	}
	record.Description = models.StringPtr(parser.NormalizeText(text))
	return nil
}

func (a *assembler) priceSection(node markup.Node, record *models.ProductRecord) {
	text, ok := a.extractor.PriceText(node)
	if !ok {
		return
	}
	if price, ok := parser.ExtractPrice(text); ok {
		record.UnitPrice = models.FloatPtr(price)
	}
}
