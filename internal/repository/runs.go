package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/shipdocs/constants"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
)

const runsTable = "runs"

// created_at is stored as fixed-width UTC text so it sorts the same on every dialect.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var runColumns = []string{
	"id", "order_numbers", "overall_status", "passed", "orders", "instruction", "validation", "error_message", "created_at",
}

type RunRepository interface {
	Migrate(ctx context.Context) error
	Save(ctx context.Context, run *entity.Run) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Run, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.Run, error)
}

type runRepo struct {
	db  *DB
	log *slog.Logger
}

func NewRunRepository(db *DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log}
}

func (r *runRepo) Migrate(ctx context.Context) error {
	ts, boolean := "TEXT", "INTEGER"
	if r.db.Dialect() == dialect.Postgres {
		boolean = "BOOLEAN"
	}
	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	order_numbers TEXT NOT NULL,
	overall_status TEXT NOT NULL,
	passed %s NOT NULL,
	orders TEXT,
	instruction TEXT,
	validation TEXT,
	error_message TEXT,
	created_at %s NOT NULL
)`, runsTable, boolean, ts),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS runs_created_at_idx ON %s (created_at)`, runsTable),
	}
	for _, q := range ddl {
		if err := r.db.Driver.Exec(ctx, q, []any{}, nil); err != nil {
			r.log.Error("runs migrate failed", "err", err)
			return common.NewAppError(common.CodeDatabase, "migrate runs", err)
		}
	}
	r.log.Info("runs table ready", "dialect", r.db.Dialect())
	return nil
}

func (r *runRepo) Save(ctx context.Context, run *entity.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	numbers := run.OrderNumbers
	if numbers == nil {
		numbers = []string{}
	}
	nums, err := json.Marshal(numbers)
	if err != nil {
		return err
	}
	status := run.OverallStatus
	if status == "" {
		status = constants.ValidationFailed
	}
	passed := any(run.Passed)
	if r.db.Dialect() != dialect.Postgres {
		passed = boolInt(run.Passed)
	}

	query, args := entsql.Dialect(r.db.Dialect()).
		Insert(runsTable).
		Columns(runColumns...).
		Values(
			run.ID.String(),
			string(nums),
			string(status),
			passed,
			nullJSON(run.Orders),
			nullJSON(run.Instruction),
			nullJSON(run.Validation),
			nullString(run.ErrorMessage),
			run.CreatedAt.UTC().Format(timeLayout),
		).
		Query()
	if err := r.db.Driver.Exec(ctx, query, args, nil); err != nil {
		r.log.Error("run save failed", "run_id", run.ID, "err", err)
		return common.NewAppError(common.CodeDatabase, "save run", err)
	}
	r.log.Info("run saved", "run_id", run.ID, "overall_status", status)
	return nil
}

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Run, error) {
	b := entsql.Dialect(r.db.Dialect())
	query, args := b.Select(runColumns...).
		From(b.Table(runsTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	runs, err := r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	return runs[0], nil
}

func (r *runRepo) ListRecent(ctx context.Context, limit int) ([]*entity.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	b := entsql.Dialect(r.db.Dialect())
	query, args := b.Select(runColumns...).
		From(b.Table(runsTable)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(limit).
		Query()
	return r.query(ctx, query, args)
}

func (r *runRepo) query(ctx context.Context, query string, args []any) ([]*entity.Run, error) {
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		r.log.Error("runs query failed", "err", err)
		return nil, common.NewAppError(common.CodeDatabase, "query runs", err)
	}
	defer rows.Close()

	var out []*entity.Run
	for rows.Next() {
		run, err := scanRun(&rows)
		if err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "scan run", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "iterate runs", err)
	}
	return out, nil
}

func scanRun(rows *entsql.Rows) (*entity.Run, error) {
	var (
		id, nums, status, created           string
		passed                              bool
		orders, instruction, validation, em sql.NullString
	)
	if err := rows.Scan(&id, &nums, &status, &passed, &orders, &instruction, &validation, &em, &created); err != nil {
		return nil, err
	}
	run := &entity.Run{
		OverallStatus: constants.ValidationStatus(status),
		Passed:        passed,
		Orders:        rawJSON(orders),
		Instruction:   rawJSON(instruction),
		Validation:    rawJSON(validation),
	}
	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(nums), &run.OrderNumbers); err != nil {
		return nil, err
	}
	if run.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, err
	}
	if em.Valid {
		run.ErrorMessage = &em.String
	}
	return run, nil
}

// IsNotFound reports whether err came from a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func rawJSON(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.RawMessage(s.String)
}
