// Command seeds populates a development database with a known user,
// business account, and website so the dashboard and widget have something
// to show after a fresh migration.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edvin/sitehelper/internal/core"
	"github.com/edvin/sitehelper/internal/model"
	"github.com/edvin/sitehelper/internal/rbac"
)

const (
	devUserID    = "00000000-0000-4000-8000-000000000001"
	devAccountID = "00000000-0000-4000-8000-000000000002"
	devMemberID  = "00000000-0000-4000-8000-000000000003"
	devWebsiteID = "00000000-0000-4000-8000-000000000004"
	devKBID      = "00000000-0000-4000-8000-000000000005"

	devEmail    = "dev@sitehelper.test"
	devPassword = "devpassword"
)

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "error: DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	hash, err := core.HashPassword(devPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: hash password: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	defaultCfg := model.DefaultWidgetConfig()
	site := model.Website{WidgetConfig: defaultCfg}

	batch := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO users (id, email, password_hash, display_name, created_at, updated_at)
		  VALUES ($1, $2, $3, $4, $5, $5)
		  ON CONFLICT (id) DO UPDATE SET password_hash = $3`,
			[]any{devUserID, devEmail, hash, "Dev User", now}},
		{`INSERT INTO business_accounts (id, name, owner_id, created_at, updated_at)
		  VALUES ($1, $2, $3, $4, $4)
		  ON CONFLICT (id) DO NOTHING`,
			[]any{devAccountID, "Dev Account", devUserID, now}},
		{`INSERT INTO team_members (id, business_account_id, user_id, role, status, invited_at, joined_at)
		  VALUES ($1, $2, $3, $4, $5, $6, $6)
		  ON CONFLICT (id) DO NOTHING`,
			[]any{devMemberID, devAccountID, devUserID, rbac.RoleOwner, model.MemberActive, now}},
		{`INSERT INTO websites (id, business_account_id, name, url, status, widget_config, created_at, updated_at)
		  VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		  ON CONFLICT (id) DO NOTHING`,
			[]any{devWebsiteID, devAccountID, "Dev Site", "https://example.com", model.WebsiteCompleted, site.WidgetConfigJSON(), now}},
		{`INSERT INTO knowledge_bases (id, website_id, content, summary, metadata, created_at, updated_at)
		  VALUES ($1, $2, $3, $4, '{}', $5, $5)
		  ON CONFLICT (id) DO NOTHING`,
			[]any{devKBID, devWebsiteID,
				"Example Domain. This domain is for use in illustrative examples in documents.",
				"Knowledge base extracted from https://example.com. Contains 12 words of content.", now}},
	}

	for _, stmt := range batch {
		if _, err := pool.Exec(ctx, stmt.sql, stmt.args...); err != nil {
			fmt.Fprintf(os.Stderr, "error: seed: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("seeded dev data:\n")
	fmt.Printf("  login:    %s / %s\n", devEmail, devPassword)
	fmt.Printf("  account:  %s\n", devAccountID)
	fmt.Printf("  website:  %s\n", devWebsiteID)
}
