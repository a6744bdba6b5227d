package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_students",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_attendance",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_alerts_and_models",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create students table
-- Version: 001

CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    roll_number INTEGER NOT NULL UNIQUE,
    full_name VARCHAR(100) NOT NULL,
    class INTEGER NOT NULL,
    guardian_email VARCHAR(255) NOT NULL DEFAULT '',
    mentor_email VARCHAR(255) NOT NULL DEFAULT '',
    attendance_pct DECIMAL(5,2) NOT NULL DEFAULT 0,
    average_score DECIMAL(5,2) NOT NULL DEFAULT 50,
    exam_attempts INTEGER NOT NULL DEFAULT 1,
    fee_status VARCHAR(10) NOT NULL DEFAULT 'paid',
    risk_level VARCHAR(10) NOT NULL DEFAULT 'unknown',
    status VARCHAR(20) NOT NULL DEFAULT 'enrolled',
    last_marked_at TIMESTAMP WITH TIME ZONE,
    profile_updated_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Constraints for data integrity
    CONSTRAINT valid_roll_number CHECK (roll_number > 0),
    CONSTRAINT valid_class CHECK (class BETWEEN 1 AND 12),
    CONSTRAINT valid_attendance_pct CHECK (attendance_pct >= 0 AND attendance_pct <= 100),
    CONSTRAINT valid_average_score CHECK (average_score >= 0 AND average_score <= 100),
    CONSTRAINT valid_exam_attempts CHECK (exam_attempts >= 0),
    CONSTRAINT valid_fee_status CHECK (fee_status IN ('paid', 'due', 'overdue')),
    CONSTRAINT valid_risk_level CHECK (risk_level IN ('unknown', 'low', 'medium', 'high')),
    CONSTRAINT valid_status CHECK (status IN ('enrolled', 'inactive', 'left', 'graduated'))
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_students_roll_number ON students(roll_number);
CREATE INDEX IF NOT EXISTS idx_students_class ON students(class);
CREATE INDEX IF NOT EXISTS idx_students_risk_level ON students(risk_level);
CREATE INDEX IF NOT EXISTS idx_students_fee_status ON students(fee_status) WHERE fee_status != 'paid';
CREATE INDEX IF NOT EXISTS idx_students_status ON students(status) WHERE status = 'enrolled';

-- Composite index for the at-risk roster query
CREATE INDEX IF NOT EXISTS idx_students_risk_enrolled ON students(risk_level, status) WHERE status = 'enrolled';

-- Updated_at trigger function for automatic timestamp updates
CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS update_students_updated_at ON students;
CREATE TRIGGER update_students_updated_at
    BEFORE UPDATE ON students
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration001Down = `
DROP TRIGGER IF EXISTS update_students_updated_at ON students;
DROP FUNCTION IF EXISTS update_updated_at_column();
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create daily attendance ledger
-- Version: 002
-- One row per student per calendar day. Re-marking the same day
-- overwrites the previous status (upsert on the unique pair).

CREATE TABLE IF NOT EXISTS daily_attendance (
    id BIGSERIAL PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    date DATE NOT NULL,
    status VARCHAR(10) NOT NULL,
    marked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(student_id, date),
    CONSTRAINT valid_attendance_status CHECK (status IN ('present', 'absent', 'late', 'excused'))
);

CREATE INDEX IF NOT EXISTS idx_daily_attendance_student_date ON daily_attendance(student_id, date DESC);
CREATE INDEX IF NOT EXISTS idx_daily_attendance_date ON daily_attendance(date DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS daily_attendance;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ALERTS AND MODELS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create alert log and risk model storage
-- Version: 003

-- Every alert attempt is recorded, including skips, so the weekly job
-- can enforce the per-student cooldown.
CREATE TABLE IF NOT EXISTS alerts (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    roll_number INTEGER NOT NULL,
    student_name VARCHAR(100) NOT NULL,
    risk_level VARCHAR(10) NOT NULL,
    reason VARCHAR(30) NOT NULL,
    channel VARCHAR(20) NOT NULL,
    recipient VARCHAR(255) NOT NULL,
    subject VARCHAR(255) NOT NULL,
    body TEXT NOT NULL,
    status VARCHAR(10) NOT NULL DEFAULT 'pending',
    attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    sent_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_alert_status CHECK (status IN ('pending', 'sent', 'failed', 'skipped')),
    CONSTRAINT valid_alert_reason CHECK (reason IN ('weekly_review', 'risk_escalated', 'manual'))
);

CREATE INDEX IF NOT EXISTS idx_alerts_student ON alerts(student_id);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_student_sent ON alerts(student_id, sent_at DESC) WHERE status = 'sent';

-- Trained decision trees, newest row wins. Old models are kept for
-- troubleshooting bad rollouts.
CREATE TABLE IF NOT EXISTS risk_models (
    id BIGSERIAL PRIMARY KEY,
    model JSONB NOT NULL,
    trained_on INTEGER NOT NULL DEFAULT 0,
    trained_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_risk_models_trained_at ON risk_models(trained_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS risk_models;
DROP TABLE IF EXISTS alerts;
`
