package database

import (
	"context"
)

// CreateTables creates all necessary database tables.
func (db *DB) CreateTables(ctx context.Context) error {
	db.logger.Info("creating database tables")

	voiceExamplesTable := `
	CREATE TABLE IF NOT EXISTS voice_examples (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id VARCHAR(100) NOT NULL,
		text TEXT NOT NULL,
		embedding FLOAT8[],
		engagement_weight INT NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_voice_examples_owner ON voice_examples(owner_id);
	`

	voiceProfilesTable := `
	CREATE TABLE IF NOT EXISTS voice_profiles (
		owner_id VARCHAR(100) PRIMARY KEY,
		master_embedding FLOAT8[],
		confidence_score INT NOT NULL DEFAULT 0,
		archetype VARCHAR(50),
		tone_attributes TEXT[],
		dominant_hook_type VARCHAR(100),
		analysis_notes TEXT,
		example_count INT NOT NULL DEFAULT 0,
		extracted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	pillarsTable := `
	CREATE TABLE IF NOT EXISTS pillars (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id VARCHAR(100) NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		tone VARCHAR(100),
		target_audience TEXT,
		status VARCHAR(50) DEFAULT 'active',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_pillars_owner_status ON pillars(owner_id, status);
	`

	topicsTable := `
	CREATE TABLE IF NOT EXISTS topics (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id VARCHAR(100) NOT NULL,
		content TEXT NOT NULL,
		source VARCHAR(50) NOT NULL,
		source_url TEXT,
		raw_data TEXT,
		status VARCHAR(50) DEFAULT 'new',
		pillar_id UUID,
		pillar_name VARCHAR(255),
		ai_score INT DEFAULT 0,
		hook_angle TEXT,
		reasoning TEXT,
		suggested_hashtags TEXT[],
		key_points TEXT[],
		confidence_score INT DEFAULT 0,
		relevance_score INT DEFAULT 0,
		trending_score INT DEFAULT 0,
		priority_score DECIMAL(6,2) DEFAULT 0.0,
		discovered_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_topics_owner_status ON topics(owner_id, status);
	CREATE INDEX IF NOT EXISTS idx_topics_priority ON topics(priority_score DESC);
	`

	draftsTable := `
	CREATE TABLE IF NOT EXISTS draft_variants (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id VARCHAR(100) NOT NULL,
		topic_id UUID,
		pillar_id UUID,
		variant_letter VARCHAR(5),
		full_text TEXT NOT NULL,
		hook TEXT,
		body TEXT,
		cta TEXT,
		hashtags TEXT[],
		character_count INT DEFAULT 0,
		voice_match_score INT DEFAULT 0,
		estimated_reach INT DEFAULT 0,
		style VARCHAR(50),
		status VARCHAR(50) DEFAULT 'draft',
		quality_metrics JSONB,
		quality_gate JSONB,
		deduplication JSONB,
		embedding FLOAT8[],
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_drafts_owner_status ON draft_variants(owner_id, status);
	CREATE INDEX IF NOT EXISTS idx_drafts_topic ON draft_variants(topic_id);
	`

	jobsTable := `
	CREATE TABLE IF NOT EXISTS generation_jobs (
		id VARCHAR(64) PRIMARY KEY,
		owner_id VARCHAR(100) NOT NULL,
		kind VARCHAR(50) NOT NULL,
		topic_id UUID,
		pillar_id UUID,
		payload JSONB,
		status VARCHAR(50) DEFAULT 'queued',
		attempts INT DEFAULT 0,
		last_error TEXT,
		placeholder_ref VARCHAR(255),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		started_at TIMESTAMP,
		finished_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON generation_jobs(status);
	CREATE INDEX IF NOT EXISTS idx_jobs_owner ON generation_jobs(owner_id);
	`

	usageTable := `
	CREATE TABLE IF NOT EXISTS usage_counters (
		owner_id VARCHAR(100) NOT NULL,
		action VARCHAR(50) NOT NULL,
		period_start DATE NOT NULL,
		count INT NOT NULL DEFAULT 0,
		PRIMARY KEY (owner_id, action, period_start)
	);
	`

	tables := []string{
		voiceExamplesTable,
		voiceProfilesTable,
		pillarsTable,
		topicsTable,
		draftsTable,
		jobsTable,
		usageTable,
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, table); err != nil {
			return err
		}
	}

	db.logger.Info("all tables ready")
	return nil
}
