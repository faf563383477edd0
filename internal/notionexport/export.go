package notionexport

import (
	"context"
	"fmt"
	"strings"

	"github.com/copanyhq/revenue-sync/internal/aggregate"
	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
)

// Exporter mirrors monthly revenue aggregates into a Notion database,
// one page per (tenant, month). Pages are keyed by their title so
// re-exports update in place.
type Exporter struct {
	svc        NotionService
	databaseID string
	log        zerolog.Logger
}

// NewExporter creates a Notion aggregate exporter.
func NewExporter(svc NotionService, databaseID string, log zerolog.Logger) *Exporter {
	return &Exporter{svc: svc, databaseID: databaseID, log: log}
}

// ExportMonthly creates or updates one page per monthly aggregate.
func (e *Exporter) ExportMonthly(ctx context.Context, tenantID string, months []aggregate.Monthly) error {
	index, err := e.pageIndex(ctx)
	if err != nil {
		return fmt.Errorf("ExportMonthly: indexing pages: %w", err)
	}

	for _, m := range months {
		title := pageTitle(tenantID, m.Month)
		props := monthlyToProperties(tenantID, m)

		if pageID, exists := index[title]; !exists {
			if _, err := e.svc.CreatePage(ctx, e.databaseID, props); err != nil {
				return fmt.Errorf("ExportMonthly: creating %q: %w", title, err)
			}
			e.log.Info().Str("tenant_id", tenantID).Str("month", m.Month).Msg("Created Notion aggregate page")
		} else {
			if _, err := e.svc.UpdatePage(ctx, pageID, props); err != nil {
				return fmt.Errorf("ExportMonthly: updating %q: %w", title, err)
			}
			e.log.Info().Str("tenant_id", tenantID).Str("month", m.Month).Msg("Updated Notion aggregate page")
		}
	}

	return nil
}

// pageIndex maps page titles to page IDs for the whole database.
// The query API exposes no title filter, so pages are fetched in
// batches and matched client-side. Handles pagination automatically.
func (e *Exporter) pageIndex(ctx context.Context) (map[string]string, error) {
	index := map[string]string{}
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := e.svc.QueryDatabase(ctx, e.databaseID, req)
		if err != nil {
			return nil, err
		}

		for _, page := range resp.Results {
			if title := titleProperty(page); title != "" {
				index[title] = string(page.ID)
			}
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return index, nil
}

// titleProperty extracts the plain text of a page's "Month" title.
func titleProperty(page notionapi.Page) string {
	var parts []notionapi.RichText
	switch p := page.Properties["Month"].(type) {
	case *notionapi.TitleProperty:
		parts = p.Title
	case notionapi.TitleProperty:
		parts = p.Title
	default:
		return ""
	}

	var b strings.Builder
	for _, rt := range parts {
		if rt.PlainText != "" {
			b.WriteString(rt.PlainText)
		} else if rt.Text != nil {
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String()
}

func pageTitle(tenantID, month string) string {
	return fmt.Sprintf("%s %s", tenantID, month)
}

// monthlyToProperties converts a monthly aggregate to Notion properties.
func monthlyToProperties(tenantID string, m aggregate.Monthly) notionapi.Properties {
	amount, _ := m.AmountUSD.Float64()

	return notionapi.Properties{
		"Month": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: pageTitle(tenantID, m.Month),
					},
				},
			},
		},
		"Tenant": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tenantID,
					},
				},
			},
		},
		"Amount (USD)": notionapi.NumberProperty{
			Number: amount,
		},
		"Transactions": notionapi.NumberProperty{
			Number: float64(m.Count),
		},
	}
}
