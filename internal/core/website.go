package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/sitehelper/internal/model"
	"github.com/edvin/sitehelper/internal/platform"
	"github.com/edvin/sitehelper/internal/rbac"
)

type WebsiteService struct {
	db      DB
	team    *TeamService
	audit   *AuditService
	scraper PageScraper
}

func NewWebsiteService(db DB, team *TeamService, audit *AuditService, scraper PageScraper) *WebsiteService {
	return &WebsiteService{db: db, team: team, audit: audit, scraper: scraper}
}

const websiteColumns = `id, business_account_id, name, url, status, scrape_error, widget_config, created_at, updated_at`

func scanWebsite(row pgx.Row) (*model.Website, error) {
	var w model.Website
	var cfg []byte
	err := row.Scan(&w.ID, &w.BusinessAccountID, &w.Name, &w.URL, &w.Status,
		&w.ScrapeError, &cfg, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &w.WidgetConfig); err != nil {
			return nil, fmt.Errorf("decode widget config: %w", err)
		}
	}
	return &w, nil
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalidInput("url is required")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", invalidInput("invalid url")
	}
	return u.String(), nil
}

// Create registers a website and its empty knowledge base in one
// transaction. The website starts in pending until a scrape runs.
func (s *WebsiteService) Create(ctx context.Context, accountID, actorUserID, name, rawURL string) (*model.Website, error) {
	if _, err := s.team.RequirePermission(ctx, accountID, actorUserID, rbac.PermManageWebsites); err != nil {
		return nil, err
	}
	siteURL, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, invalidInput("website name is required")
	}

	now := time.Now()
	site := &model.Website{
		ID:                platform.NewID(),
		BusinessAccountID: accountID,
		Name:              name,
		URL:               siteURL,
		Status:            model.WebsitePending,
		WidgetConfig:      model.DefaultWidgetConfig(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create website: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO websites (id, business_account_id, name, url, status, widget_config, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		site.ID, site.BusinessAccountID, site.Name, site.URL, site.Status,
		site.WidgetConfigJSON(), site.CreatedAt, site.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert website: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO knowledge_bases (id, website_id, content, summary, metadata, created_at, updated_at)
		 VALUES ($1, $2, '', '', '{}', $3, $4)`,
		platform.NewID(), site.ID, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert knowledge base: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create website: %w", err)
	}

	s.audit.Record(accountID, actorUserID, "website.created", "website", &site.ID,
		map[string]string{"name": site.Name, "url": site.URL})
	return site, nil
}

// List returns the account's websites, newest first. Requires view_websites.
func (s *WebsiteService) List(ctx context.Context, accountID, actorUserID string) ([]model.Website, error) {
	if _, err := s.team.RequirePermission(ctx, accountID, actorUserID, rbac.PermViewWebsites); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+websiteColumns+` FROM websites
		 WHERE business_account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list websites: %w", err)
	}
	defer rows.Close()

	var sites []model.Website
	for rows.Next() {
		var w model.Website
		var cfg []byte
		if err := rows.Scan(&w.ID, &w.BusinessAccountID, &w.Name, &w.URL, &w.Status,
			&w.ScrapeError, &cfg, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan website: %w", err)
		}
		if len(cfg) > 0 {
			if err := json.Unmarshal(cfg, &w.WidgetConfig); err != nil {
				return nil, fmt.Errorf("decode widget config: %w", err)
			}
		}
		sites = append(sites, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate websites: %w", err)
	}
	return sites, nil
}

// Get loads a website and checks the actor holds the given permission in
// the owning account. The account id comes from the row, never the caller.
func (s *WebsiteService) Get(ctx context.Context, websiteID, actorUserID string, perm rbac.Permission) (*model.Website, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+websiteColumns+` FROM websites WHERE id = $1`, websiteID)
	site, err := scanWebsite(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: website", ErrNotFound)
		}
		return nil, fmt.Errorf("get website %s: %w", websiteID, err)
	}

	if _, err := s.team.RequirePermission(ctx, site.BusinessAccountID, actorUserID, perm); err != nil {
		return nil, err
	}
	return site, nil
}

// Rename changes the website's display name. Requires manage_websites.
func (s *WebsiteService) Rename(ctx context.Context, websiteID, actorUserID, name string) (*model.Website, error) {
	if name == "" {
		return nil, invalidInput("website name is required")
	}

	site, err := s.Get(ctx, websiteID, actorUserID, rbac.PermManageWebsites)
	if err != nil {
		return nil, err
	}

	site.Name = name
	site.UpdatedAt = time.Now()
	_, err = s.db.Exec(ctx,
		`UPDATE websites SET name = $1, updated_at = $2 WHERE id = $3`,
		site.Name, site.UpdatedAt, site.ID)
	if err != nil {
		return nil, fmt.Errorf("rename website: %w", err)
	}

	s.audit.Record(site.BusinessAccountID, actorUserID, "website.renamed", "website", &site.ID,
		map[string]string{"name": name})
	return site, nil
}

// UpdateWidgetConfig replaces the widget settings. Requires manage_websites.
func (s *WebsiteService) UpdateWidgetConfig(ctx context.Context, websiteID, actorUserID string, cfg model.WidgetConfig) (*model.Website, error) {
	site, err := s.Get(ctx, websiteID, actorUserID, rbac.PermManageWebsites)
	if err != nil {
		return nil, err
	}

	site.WidgetConfig = cfg
	site.UpdatedAt = time.Now()
	_, err = s.db.Exec(ctx,
		`UPDATE websites SET widget_config = $1, updated_at = $2 WHERE id = $3`,
		site.WidgetConfigJSON(), site.UpdatedAt, site.ID)
	if err != nil {
		return nil, fmt.Errorf("update widget config: %w", err)
	}

	s.audit.Record(site.BusinessAccountID, actorUserID, "website.widget_updated", "website", &site.ID, cfg)
	return site, nil
}

// Delete removes a website and, via cascade, its knowledge base and
// conversations. Requires manage_websites.
func (s *WebsiteService) Delete(ctx context.Context, websiteID, actorUserID string) error {
	site, err := s.Get(ctx, websiteID, actorUserID, rbac.PermManageWebsites)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM websites WHERE id = $1`, site.ID); err != nil {
		return fmt.Errorf("delete website %s: %w", site.ID, err)
	}

	s.audit.Record(site.BusinessAccountID, actorUserID, "website.deleted", "website", &site.ID,
		map[string]string{"name": site.Name})
	return nil
}

// Scrape fetches the website's pages and replaces the knowledge base
// content. The website moves pending/failed/completed -> processing ->
// completed or failed; failures record the error on the row.
func (s *WebsiteService) Scrape(ctx context.Context, websiteID, actorUserID string) (*model.Website, error) {
	site, err := s.Get(ctx, websiteID, actorUserID, rbac.PermEditKnowledgeBases)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = s.db.Exec(ctx,
		`UPDATE websites SET status = 'processing', scrape_error = NULL, updated_at = $1 WHERE id = $2`,
		now, site.ID)
	if err != nil {
		return nil, fmt.Errorf("mark website processing: %w", err)
	}
	site.Status = model.WebsiteProcessing
	site.ScrapeError = nil

	result, scrapeErr := s.scraper.Scrape(ctx, site.URL)
	if scrapeErr != nil {
		msg := scrapeErr.Error()
		if _, err := s.db.Exec(ctx,
			`UPDATE websites SET status = 'failed', scrape_error = $1, updated_at = $2 WHERE id = $3`,
			msg, time.Now(), site.ID); err != nil {
			return nil, fmt.Errorf("mark website failed: %w", err)
		}
		site.Status = model.WebsiteFailed
		site.ScrapeError = &msg
		s.audit.Record(site.BusinessAccountID, actorUserID, "website.scrape_failed", "website", &site.ID,
			map[string]string{"error": msg})
		return site, nil
	}

	meta, _ := json.Marshal(map[string]any{"scraped_at": now, "source_url": site.URL})
	_, err = s.db.Exec(ctx,
		`UPDATE knowledge_bases SET content = $1, summary = $2, metadata = $3, updated_at = $4 WHERE website_id = $5`,
		result.Content, result.Summary, meta, time.Now(), site.ID)
	if err != nil {
		return nil, fmt.Errorf("update knowledge base: %w", err)
	}

	site.UpdatedAt = time.Now()
	_, err = s.db.Exec(ctx,
		`UPDATE websites SET status = 'completed', updated_at = $1 WHERE id = $2`,
		site.UpdatedAt, site.ID)
	if err != nil {
		return nil, fmt.Errorf("mark website completed: %w", err)
	}
	site.Status = model.WebsiteCompleted

	s.audit.Record(site.BusinessAccountID, actorUserID, "website.scraped", "website", &site.ID,
		map[string]string{"url": site.URL})
	return site, nil
}
