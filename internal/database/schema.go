package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates every table the server reads or writes. Statements are
// idempotent so Migrate can run on each start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username      VARCHAR(64)  NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		user_id    BIGINT UNSIGNED NOT NULL PRIMARY KEY,
		token_hash CHAR(64)        NOT NULL,
		expires_at DATETIME        NOT NULL,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tickets (
		id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		ticket_type  ENUM('GENERAL','PREMIUM') NOT NULL,
		ticket_count INT    NOT NULL DEFAULT 1,
		price        BIGINT NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS ticket_management (
		id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		ticket_id    BIGINT UNSIGNED NOT NULL,
		available_at DATETIME        NOT NULL,
		stock        INT             NOT NULL DEFAULT 0,
		KEY idx_ticket_management_day (available_at),
		CONSTRAINT fk_ticket_management_ticket FOREIGN KEY (ticket_id) REFERENCES tickets(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS ticket_orders (
		id                   BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id              BIGINT UNSIGNED NOT NULL,
		ticket_management_id BIGINT UNSIGNED NOT NULL,
		payment_date         DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		active_status        ENUM('ACTIVE','INACTIVE') NOT NULL DEFAULT 'ACTIVE',
		KEY idx_ticket_orders_user (user_id, active_status),
		CONSTRAINT fk_ticket_orders_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS rides (
		id                BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name              VARCHAR(128) NOT NULL,
		riding_time       INT          NOT NULL DEFAULT 0,
		is_active         TINYINT(1)   NOT NULL DEFAULT 1,
		capacity_total    INT          NOT NULL DEFAULT 0,
		capacity_premium  INT          NOT NULL DEFAULT 0,
		capacity_general  INT          NOT NULL DEFAULT 0,
		short_description VARCHAR(255) NOT NULL DEFAULT '',
		long_description  TEXT,
		photo             VARCHAR(512) NOT NULL DEFAULT '',
		operating_time    VARCHAR(64)  NOT NULL DEFAULT '',
		created_at        DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// active_key is non-NULL only for WAITED/COMPLETED rows, so the unique
	// key allows at most one such row per (ticket order, ride) while any
	// number of NO_SHOW rows may coexist.
	`CREATE TABLE IF NOT EXISTS ride_usage (
		id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id         BIGINT UNSIGNED NOT NULL,
		ride_id         BIGINT UNSIGNED NOT NULL,
		ticket_order_id BIGINT UNSIGNED NOT NULL,
		status          ENUM('WAITED','COMPLETED','NO_SHOW') NOT NULL,
		arrived_at      DATETIME NULL,
		completed_at    DATETIME NULL,
		created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		active_key      VARCHAR(64) GENERATED ALWAYS AS (
			IF(status IN ('WAITED','COMPLETED'), CONCAT(ticket_order_id, ':', ride_id), NULL)
		) STORED,
		UNIQUE KEY uq_ride_usage_active (active_key),
		KEY idx_ride_usage_user_ride (user_id, ride_id, status),
		CONSTRAINT fk_ride_usage_order FOREIGN KEY (ticket_order_id) REFERENCES ticket_orders(id),
		CONSTRAINT fk_ride_usage_ride FOREIGN KEY (ride_id) REFERENCES rides(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema in order.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
