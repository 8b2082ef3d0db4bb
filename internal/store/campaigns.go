package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sumitkumar2005/xeno-crm/internal/segment"
)

const campaignColumns = `id, owner_id, rules, message, created_at`

// CreateCampaign inserts c and populates ID and CreatedAt.
func (s *PostgresStore) CreateCampaign(ctx context.Context, c *Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Rules == nil {
		c.Rules = []segment.Condition{}
	}

	query := `
		INSERT INTO campaigns (id, owner_id, rules, message)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	if err := s.db.QueryRow(ctx, query, c.ID, c.OwnerID, c.Rules, c.Message).Scan(&c.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert campaign: %w", err)
	}
	return nil
}

// FindCampaignByID returns ErrNotFound when no row matches.
func (s *PostgresStore) FindCampaignByID(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	var c Campaign
	if err := s.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.OwnerID, &c.Rules, &c.Message, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &c, nil
}

// ListCampaignsByOwner returns the owner's campaigns, newest first.
func (s *PostgresStore) ListCampaignsByOwner(ctx context.Context, ownerID string) ([]*Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE owner_id = $1
		ORDER BY created_at DESC, id
	`
	rows, err := s.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*Campaign{}
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Rules, &c.Message, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan campaign row: %w", err)
		}
		campaigns = append(campaigns, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return campaigns, nil
}

// InsertLogs writes every record with a single COPY, which PostgreSQL applies atomically.
func (s *PostgresStore) InsertLogs(ctx context.Context, logs []*CommunicationLog) error {
	if len(logs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, l := range logs {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
	}

	columns := []string{"id", "campaign_id", "customer_name", "customer_email", "message", "status", "created_at"}
	source := pgx.CopyFromSlice(len(logs), func(i int) ([]any, error) {
		l := logs[i]
		return []any{l.ID, l.CampaignID, l.CustomerName, l.CustomerEmail, l.Message, string(l.Status), l.CreatedAt}, nil
	})

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{"communication_logs"}, columns, source)
	if err != nil {
		return fmt.Errorf("failed to copy communication logs: %w", err)
	}
	if int(n) != len(logs) {
		return fmt.Errorf("copied %d of %d communication logs", n, len(logs))
	}
	return nil
}

// FindLogsByCampaign returns the campaign's logs, newest first.
func (s *PostgresStore) FindLogsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*CommunicationLog, error) {
	query := `
		SELECT id, campaign_id, customer_name, customer_email, message, status, created_at
		FROM communication_logs
		WHERE campaign_id = $1
		ORDER BY created_at DESC, id
	`
	rows, err := s.db.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query communication logs: %w", err)
	}
	defer rows.Close()

	logs := []*CommunicationLog{}
	for rows.Next() {
		var l CommunicationLog
		var status string
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.CustomerName, &l.CustomerEmail, &l.Message, &status, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan communication log row: %w", err)
		}
		l.Status = DeliveryStatus(status)
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return logs, nil
}
