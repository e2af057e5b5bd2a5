// Package notion mirrors exported ledger lines into a Notion database, one
// page per line keyed by line id.
package notion

import (
	"context"
	"fmt"

	"github.com/dvloznov/bookkeeper/internal/export"
	"github.com/dvloznov/bookkeeper/internal/logger"
	"github.com/jomei/notionapi"
)

const pageSize = 100

// SyncResult counts what a sync did.
type SyncResult struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// Sink syncs ledger lines into one database.
type Sink struct {
	svc        Service
	databaseID string
	dryRun     bool
}

// NewSink returns a Sink writing to databaseID. In dry-run mode nothing is
// written and the result reports what would have happened.
func NewSink(svc Service, databaseID string, dryRun bool) *Sink {
	return &Sink{svc: svc, databaseID: databaseID, dryRun: dryRun}
}

// SyncPeriod makes the database's pages for periodID match rows. Existing
// pages are updated in place, new lines get new pages and pages of lines no
// longer in the ledger are archived. Per-page failures are logged and
// counted; only a failed database query aborts the sync.
func (s *Sink) SyncPeriod(ctx context.Context, periodID string, rows []export.EntryRow) (SyncResult, error) {
	log := logger.FromContext(ctx)
	var res SyncResult

	pages, err := s.queryAll(ctx)
	if err != nil {
		return res, fmt.Errorf("SyncPeriod: %w", err)
	}

	existing := make(map[string]string)
	var stale []string
	wanted := make(map[string]bool, len(rows))
	for _, r := range rows {
		wanted[r.LineID] = true
	}
	for _, page := range pages {
		if plainText(page, propPeriod) != periodID {
			continue
		}
		lineID := plainText(page, propLineID)
		if lineID == "" || !wanted[lineID] {
			stale = append(stale, string(page.ID))
			continue
		}
		existing[lineID] = string(page.ID)
	}

	for _, pageID := range stale {
		if s.dryRun {
			log.Info().Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := s.svc.ArchivePage(ctx, pageID); err != nil {
			log.Warn().Err(err).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for _, r := range rows {
		pageID, ok := existing[r.LineID]
		if s.dryRun {
			if ok {
				res.Updated++
			} else {
				res.Created++
			}
			continue
		}

		props := LineProperties(r)
		if ok {
			if _, err := s.svc.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("line_id", r.LineID).Str("page_id", pageID).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}
		page, err := s.svc.CreatePage(ctx, s.databaseID, props)
		if err != nil {
			log.Warn().Err(err).Str("line_id", r.LineID).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("line_id", r.LineID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Str("period_id", periodID).
		Bool("dry_run", s.dryRun).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Notion sync completed")

	return res, nil
}

// queryAll follows the query cursor until every page has been read.
func (s *Sink) queryAll(ctx context.Context) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor
	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: pageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}
		resp, err := s.svc.QueryDatabase(ctx, s.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAll: %w", err)
		}
		all = append(all, resp.Results...)
		if !resp.HasMore {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}
