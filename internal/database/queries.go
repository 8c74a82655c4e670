package database

const (
	// User queries
	queryUpsertUser = `
		INSERT INTO users (chat_id, language, custody, address, private_key, pending_step, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			language = excluded.language,
			custody = excluded.custody,
			address = excluded.address,
			private_key = excluded.private_key,
			pending_step = excluded.pending_step,
			updated_at = excluded.updated_at`

	queryGetUser = `
		SELECT chat_id, language, custody, address, private_key, pending_step, created_at, updated_at
		FROM users
		WHERE chat_id = ?`

	queryGetUsers = `
		SELECT chat_id, language, custody, address, private_key, pending_step, created_at, updated_at
		FROM users
		ORDER BY created_at`

	// Balance queries
	queryGetCreditBalance = `
		SELECT balance, version
		FROM credit_balances
		WHERE chat_id = ?`

	queryInsertCreditBalance = `
		INSERT INTO credit_balances (chat_id, balance, version)
		VALUES (?, ?, 1)`

	queryUpdateCreditBalance = `
		UPDATE credit_balances
		SET balance = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE chat_id = ? AND version = ?`

	// Transaction log queries
	queryCheckDuplicateTransaction = `
		SELECT id FROM transactions WHERE id = ? LIMIT 1`

	queryInsertTransaction = `
		INSERT INTO transactions (
			id, type, from_chat_id, to_chat_id, from_address, to_address,
			amount, network, tx_hash, status, username, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransactions = `
		SELECT id, type, from_chat_id, to_chat_id, from_address, to_address,
		       amount, network, tx_hash, status, username, created_at
		FROM transactions
		ORDER BY created_at, id`
)
