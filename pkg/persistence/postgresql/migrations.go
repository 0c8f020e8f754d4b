package postgresql

// migrations returns the schema migrations keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_definitions (
				id TEXT PRIMARY KEY,
				entity_type TEXT NOT NULL,
				is_default BOOLEAN NOT NULL DEFAULT FALSE,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_definitions_default
				ON workflow_definitions (entity_type)
				WHERE is_default;

			CREATE TABLE IF NOT EXISTS workflow_instances (
				id TEXT PRIMARY KEY,
				definition_id TEXT NOT NULL REFERENCES workflow_definitions (id),
				entity_type TEXT NOT NULL,
				entity_id TEXT NOT NULL,
				current_state_id TEXT NOT NULL,
				status TEXT NOT NULL,
				state_data JSONB NOT NULL DEFAULT '{}'::jsonb,
				version BIGINT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				CONSTRAINT uq_instances_entity UNIQUE (entity_type, entity_id)
			);

			CREATE TABLE IF NOT EXISTS workflow_history (
				id TEXT PRIMARY KEY,
				instance_id TEXT NOT NULL REFERENCES workflow_instances (id),
				sequence BIGINT NOT NULL,
				kind TEXT NOT NULL,
				transition_id TEXT,
				from_state_id TEXT,
				to_state_id TEXT,
				actor TEXT,
				comments TEXT,
				metadata JSONB,
				occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
				CONSTRAINT uq_history_sequence UNIQUE (instance_id, sequence)
			);

			CREATE INDEX IF NOT EXISTS idx_history_instance
				ON workflow_history (instance_id, sequence);

			CREATE TABLE IF NOT EXISTS workflow_approvals (
				id TEXT PRIMARY KEY,
				instance_id TEXT NOT NULL REFERENCES workflow_instances (id),
				transition_id TEXT NOT NULL,
				approver_type TEXT NOT NULL,
				approver_id TEXT NOT NULL,
				status TEXT NOT NULL,
				due_date TIMESTAMP WITH TIME ZONE,
				remind_at TIMESTAMP WITH TIME ZONE,
				reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
				hard_deadline BOOLEAN NOT NULL DEFAULT FALSE,
				comments TEXT,
				resolved_by TEXT,
				resolved_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_approvals_transition
				ON workflow_approvals (instance_id, transition_id);

			CREATE INDEX IF NOT EXISTS idx_approvals_due
				ON workflow_approvals (status, due_date)
				WHERE status = 'pending';

			CREATE INDEX IF NOT EXISTS idx_approvals_remind
				ON workflow_approvals (status, remind_at)
				WHERE status = 'pending' AND NOT reminder_sent;
		`,
	}
}
