package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/annel0/mapcoord/internal/coord"
	_ "github.com/go-sql-driver/mysql"
)

// MariaDestinationRepo реализует DestinationRepo для MariaDB/MySQL.
// Хранит упакованную координату в колонке packed (INT UNSIGNED) - тот же формат,
// что и атрибут пункта назначения в файле карты.
type MariaDestinationRepo struct {
	db *sql.DB
}

// NewMariaDestinationRepo создает репозиторий и таблицу, если ее нет.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
func NewMariaDestinationRepo(ctx context.Context, dsn string) (*MariaDestinationRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaDestinationRepo{db: db}
	if err := repo.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return repo, nil
}

// createTable создает таблицу teleport_destinations, если она не существует.
func (r *MariaDestinationRepo) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS teleport_destinations (
			item_id    BIGINT UNSIGNED PRIMARY KEY,
			packed     INT UNSIGNED    NOT NULL,
			updated_at TIMESTAMP       DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE       CURRENT_TIMESTAMP,
			INDEX idx_updated_at (updated_at)
		) ENGINE=InnoDB
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы teleport_destinations: %w", err)
	}
	return nil
}

const upsertDestinationQuery = `
	INSERT INTO teleport_destinations (item_id, packed)
	VALUES (?, ?)
	ON DUPLICATE KEY UPDATE
		packed = VALUES(packed),
		updated_at = CURRENT_TIMESTAMP
`

// Save сохраняет пункт назначения (INSERT ... ON DUPLICATE KEY UPDATE).
func (r *MariaDestinationRepo) Save(ctx context.Context, itemID uint64, pos coord.Position) error {
	if err := validateDestination(itemID, pos); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, upsertDestinationQuery, itemID, uint32(coord.PackAbsolute(pos)))
	if err != nil {
		return fmt.Errorf("ошибка сохранения пункта назначения %d: %w", itemID, err)
	}
	return nil
}

// Load загружает пункт назначения.
func (r *MariaDestinationRepo) Load(ctx context.Context, itemID uint64) (coord.Position, bool, error) {
	if itemID == 0 {
		return coord.Position{}, false, fmt.Errorf("%w: %d", ErrInvalidItem, itemID)
	}

	var packed uint32
	err := r.db.QueryRowContext(ctx,
		`SELECT packed FROM teleport_destinations WHERE item_id = ?`, itemID).Scan(&packed)
	if errors.Is(err, sql.ErrNoRows) {
		return coord.Position{}, false, nil
	}
	if err != nil {
		return coord.Position{}, false, fmt.Errorf("ошибка загрузки пункта назначения %d: %w", itemID, err)
	}

	return coord.UnpackAbsolute(coord.Packed(packed)), true, nil
}

// Delete удаляет пункт назначения.
func (r *MariaDestinationRepo) Delete(ctx context.Context, itemID uint64) error {
	if itemID == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidItem, itemID)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM teleport_destinations WHERE item_id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("ошибка удаления пункта назначения %d: %w", itemID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("предмет %d: %w", itemID, ErrNotFound)
	}
	return nil
}

// BatchSave сохраняет пункты назначения в одной транзакции.
func (r *MariaDestinationRepo) BatchSave(ctx context.Context, destinations map[uint64]coord.Position) error {
	if len(destinations) == 0 {
		return nil
	}
	if err := validateBatch(destinations); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertDestinationQuery)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for itemID, pos := range destinations {
		if _, err := stmt.ExecContext(ctx, itemID, uint32(coord.PackAbsolute(pos))); err != nil {
			return fmt.Errorf("ошибка сохранения пункта назначения %d в batch: %w", itemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// List возвращает все пункты назначения.
func (r *MariaDestinationRepo) List(ctx context.Context) (map[uint64]coord.Position, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT item_id, packed FROM teleport_destinations`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пунктов назначения: %w", err)
	}
	defer rows.Close()

	result := make(map[uint64]coord.Position)
	for rows.Next() {
		var itemID uint64
		var packed uint32
		if err := rows.Scan(&itemID, &packed); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		result[itemID] = coord.UnpackAbsolute(coord.Packed(packed))
	}
	return result, rows.Err()
}

// Close закрывает соединение с базой данных.
func (r *MariaDestinationRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
