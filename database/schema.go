package database

import (
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

// Schema contains the database schema for detection ingestion and statistics.
const Schema = `
CREATE TABLE IF NOT EXISTS trash_cans (
    trashcan_id BIGINT AUTO_INCREMENT PRIMARY KEY,
    trashcan_name VARCHAR(255),
    trashcan_capacity INT,
    trashcan_city VARCHAR(100),
    address_detail VARCHAR(255),
    trashcan_latitude DECIMAL(10, 8),
    trashcan_longitude DECIMAL(11, 8),
    is_online BOOLEAN DEFAULT FALSE,
    last_connected_at DATETIME,
    is_deleted BOOLEAN DEFAULT FALSE,
    INDEX idx_trashcan_city (trashcan_city)
);

CREATE TABLE IF NOT EXISTS waste_types (
    waste_type_id BIGINT AUTO_INCREMENT PRIMARY KEY,
    type_name VARCHAR(50) NOT NULL,
    UNIQUE KEY uniq_type_name (type_name)
);

CREATE TABLE IF NOT EXISTS detections (
    detection_id BIGINT AUTO_INCREMENT PRIMARY KEY,
    trashcan_id BIGINT NOT NULL,
    image_name VARCHAR(255),
    image_path VARCHAR(512),
    detected_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    object_count INT,
    FOREIGN KEY (trashcan_id) REFERENCES trash_cans(trashcan_id),
    INDEX idx_detections_trashcan (trashcan_id),
    INDEX idx_detections_detected_at (detected_at)
);

CREATE TABLE IF NOT EXISTS detection_details (
    detail_id BIGINT AUTO_INCREMENT PRIMARY KEY,
    detection_id BIGINT NOT NULL,
    waste_type_id BIGINT NOT NULL,
    confidence DECIMAL(5, 4),
    bbox_info JSON,
    FOREIGN KEY (detection_id) REFERENCES detections(detection_id),
    FOREIGN KEY (waste_type_id) REFERENCES waste_types(waste_type_id),
    INDEX idx_details_detection (detection_id),
    INDEX idx_details_waste_type (waste_type_id)
);

CREATE TABLE IF NOT EXISTS daily_stats (
    stats_id BIGINT AUTO_INCREMENT PRIMARY KEY,
    stats_date DATE NOT NULL,
    trashcan_city VARCHAR(100),
    waste_type_id BIGINT NOT NULL,
    detection_count BIGINT,
    FOREIGN KEY (waste_type_id) REFERENCES waste_types(waste_type_id),
    INDEX idx_stats_date (stats_date),
    INDEX idx_stats_waste_type (waste_type_id)
);
`

// InitializeSchema creates all tables on startup if they are missing.
func InitializeSchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	log.Info("Database schema initialized successfully")
	return nil
}
