package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"iamcore/internal/domain"
)

type LimitRepo struct {
	db *sqlx.DB
}

func NewLimitRepo(db *sqlx.DB) *LimitRepo {
	return &LimitRepo{db: db}
}

type limitDefinitionRow struct {
	ID            int64   `db:"id"`
	ServiceName   string  `db:"service_name"`
	LimitName     string  `db:"limit_name"`
	Description   string  `db:"description"`
	ValueType     string  `db:"value_type"`
	DefaultInt    *int    `db:"default_int"`
	DefaultString *string `db:"default_string"`
	MinValue      *int    `db:"min_value"`
	MaxValue      *int    `db:"max_value"`
}

func (row limitDefinitionRow) toDomain() *domain.LimitDefinition {
	return &domain.LimitDefinition{
		ID:            row.ID,
		ServiceName:   row.ServiceName,
		LimitName:     row.LimitName,
		Description:   row.Description,
		ValueType:     row.ValueType,
		DefaultInt:    row.DefaultInt,
		DefaultString: row.DefaultString,
		MinValue:      row.MinValue,
		MaxValue:      row.MaxValue,
	}
}

const limitDefinitionSelect = `
	SELECT id, service_name, limit_name, description, value_type,
	       default_int, default_string, min_value, max_value
	FROM limit_definition`

func (r *LimitRepo) UpsertDefinition(ctx context.Context, d *domain.LimitDefinition) (*domain.LimitDefinition, error) {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO limit_definition
			(service_name, limit_name, description, value_type, default_int, default_string, min_value, max_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (service_name, limit_name) DO UPDATE SET
			description = excluded.description,
			value_type = excluded.value_type,
			default_int = excluded.default_int,
			default_string = excluded.default_string,
			min_value = excluded.min_value,
			max_value = excluded.max_value`),
		d.ServiceName, d.LimitName, d.Description, d.ValueType,
		d.DefaultInt, d.DefaultString, d.MinValue, d.MaxValue)
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.GetDefinition(ctx, d.ServiceName, d.LimitName)
}

func (r *LimitRepo) GetDefinition(ctx context.Context, serviceName, limitName string) (*domain.LimitDefinition, error) {
	var row limitDefinitionRow
	err := getOne(ctx, r.db, &row, "limit "+serviceName+"/"+limitName,
		limitDefinitionSelect+` WHERE service_name = ? AND limit_name = ?`,
		serviceName, limitName)
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *LimitRepo) ListDefinitions(ctx context.Context, page domain.PageRequest) ([]domain.LimitDefinition, int64, error) {
	total, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM limit_definition`)
	if err != nil {
		return nil, 0, err
	}

	var rows []limitDefinitionRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(
		limitDefinitionSelect+` ORDER BY service_name, limit_name LIMIT ? OFFSET ?`),
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.LimitDefinition, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, total, nil
}

type accountLimitRow struct {
	AccountID   string  `db:"account_id"`
	LimitID     int64   `db:"limit_id"`
	Region      string  `db:"region"`
	IntValue    *int    `db:"int_value"`
	StringValue *string `db:"string_value"`
}

func (r *LimitRepo) GetAccountLimit(ctx context.Context, accountID string, limitID int64, region string) (*domain.AccountLimit, error) {
	var row accountLimitRow
	err := getOne(ctx, r.db, &row, "account limit", `
		SELECT account_id, limit_id, region, int_value, string_value
		FROM account_limit
		WHERE account_id = ? AND limit_id = ? AND region = ?`,
		accountID, limitID, region)
	if err != nil {
		return nil, err
	}
	return &domain.AccountLimit{
		AccountID:   row.AccountID,
		LimitID:     row.LimitID,
		Region:      row.Region,
		IntValue:    row.IntValue,
		StringValue: row.StringValue,
	}, nil
}

func (r *LimitRepo) PutAccountLimit(ctx context.Context, l *domain.AccountLimit) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO account_limit (account_id, limit_id, region, int_value, string_value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (account_id, limit_id, region) DO UPDATE SET
			int_value = excluded.int_value,
			string_value = excluded.string_value`),
		l.AccountID, l.LimitID, l.Region, l.IntValue, l.StringValue)
	return mapDBError(err)
}
