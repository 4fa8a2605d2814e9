package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				namespace VARCHAR(50) NOT NULL,
				entry_status INTEGER NOT NULL,
				terminal_statuses INTEGER[] NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE transition_edges (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				status_from INTEGER NOT NULL,
				status_to INTEGER NOT NULL,
				edge_type VARCHAR(20) NOT NULL CHECK (edge_type IN ('happy', 'exception')),
				is_active BOOLEAN NOT NULL DEFAULT true,
				PRIMARY KEY (workflow_id, status_from, status_to)
			);

			CREATE TABLE entities (
				id VARCHAR(255) PRIMARY KEY,
				kind VARCHAR(50) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id),
				status_code INTEGER NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_entities_status_code ON entities(status_code);

			CREATE TABLE transition_history (
				id BIGSERIAL PRIMARY KEY,
				entity_id VARCHAR(255) NOT NULL REFERENCES entities(id),
				status_old INTEGER NOT NULL,
				status_new INTEGER NOT NULL,
				changed_by VARCHAR(255) NOT NULL,
				change_reason TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_transition_history_entity_id ON transition_history(entity_id, id);
		`,
		2: `
			CREATE TABLE verification_attempts (
				id UUID PRIMARY KEY,
				subject_id VARCHAR(255) NOT NULL,
				service_type VARCHAR(20) NOT NULL CHECK (service_type IN ('sms', 'email', 'pin')),
				action_type VARCHAR(100) NOT NULL,
				token_hash TEXT NOT NULL,
				issued_at TIMESTAMP WITH TIME ZONE NOT NULL,
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
				is_used BOOLEAN NOT NULL DEFAULT false,
				retry_validate_count INTEGER NOT NULL DEFAULT 0,
				max_retry INTEGER NOT NULL,
				validated_at TIMESTAMP WITH TIME ZONE,
				version BIGINT NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_verification_attempts_key
				ON verification_attempts(subject_id, service_type, action_type, issued_at DESC);
		`,
	}
}
