package repository

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/shipdocs/constants"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
)

func openMemory(t *testing.T) RunRepository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(context.Background(), Config{Driver: "sqlite", DSN: ":memory:"}, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.HealthCheck(context.Background(), time.Second); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	repo := NewRunRepository(db, logger)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return repo
}

func TestRunSaveAndGet(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()

	msg := "salesorder_3020.pdf: document could not be parsed"
	run := &entity.Run{
		ID:            uuid.New(),
		OrderNumbers:  []string{"3004", "3020"},
		OverallStatus: constants.ValidationFailed,
		Validation:    json.RawMessage(`{"overall_status":"failed"}`),
		ErrorMessage:  &msg,
		CreatedAt:     time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	if err := repo.Save(ctx, run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := repo.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != run.ID || got.Passed || got.OverallStatus != constants.ValidationFailed {
		t.Errorf("run = %+v", got)
	}
	if len(got.OrderNumbers) != 2 || got.OrderNumbers[1] != "3020" {
		t.Errorf("order numbers = %v", got.OrderNumbers)
	}
	if string(got.Validation) != `{"overall_status":"failed"}` || got.Orders != nil {
		t.Errorf("json columns = %s / %s", got.Validation, got.Orders)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != msg {
		t.Errorf("error message = %v", got.ErrorMessage)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("created_at = %v", got.CreatedAt)
	}
}

func TestRunGetMissing(t *testing.T) {
	repo := openMemory(t)
	if _, err := repo.Get(context.Background(), uuid.New()); !IsNotFound(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunListRecent(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := repo.Save(ctx, &entity.Run{
			OrderNumbers:  []string{"30" + string(rune('1'+i)) + "5"},
			OverallStatus: constants.ValidationPassed,
			Passed:        true,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	runs, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(runs) != 2 || runs[0].OrderNumbers[0] != "3035" || runs[1].OrderNumbers[0] != "3025" {
		t.Errorf("runs = %+v", runs)
	}
	if !runs[0].Passed {
		t.Error("passed flag lost")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "mysql"}, nil); err == nil {
		t.Fatal("expected error")
	}
}
