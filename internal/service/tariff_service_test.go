package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/subgift/subgift/internal/models"
	"github.com/subgift/subgift/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupTariffServiceTest(t *testing.T) *TariffService {
	t.Helper()
	dsn := fmt.Sprintf("file:tariff_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Tariff{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	return NewTariffService(repository.NewTariffRepository(db))
}

func TestTariffServiceCreateAndList(t *testing.T) {
	svc := setupTariffServiceTest(t)

	inactive := false
	if _, err := svc.Create(CreateTariffInput{Name: "1 个月", DurationDays: 30, Price: decimal.NewFromInt(199)}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Create(CreateTariffInput{Name: "旧套餐", DurationDays: 30, Price: decimal.NewFromInt(99), IsActive: &inactive}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	all, err := svc.List(false)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tariffs, got: %d", len(all))
	}

	active, err := svc.List(true)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(active) != 1 || active[0].Name != "1 个月" {
		t.Fatalf("active filter mismatch: %+v", active)
	}
	if active[0].Currency != "RUB" {
		t.Fatalf("expected default currency RUB, got: %s", active[0].Currency)
	}
}

func TestTariffServiceValidation(t *testing.T) {
	svc := setupTariffServiceTest(t)

	cases := []CreateTariffInput{
		{Name: "", DurationDays: 30, Price: decimal.NewFromInt(100)},
		{Name: "无效时长", DurationDays: 0, Price: decimal.NewFromInt(100)},
		{Name: "负价格", DurationDays: 30, Price: decimal.NewFromInt(-1)},
	}
	for _, input := range cases {
		if _, err := svc.Create(input); !errors.Is(err, ErrTariffInvalid) {
			t.Fatalf("expected ErrTariffInvalid for %+v, got: %v", input, err)
		}
	}
}

func TestTariffServiceUpdateAndDelete(t *testing.T) {
	svc := setupTariffServiceTest(t)

	tariff, err := svc.Create(CreateTariffInput{Name: "1 个月", DurationDays: 30, Price: decimal.NewFromInt(199), Currency: "usd"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if tariff.Currency != "USD" {
		t.Fatalf("expected currency normalized to USD, got: %s", tariff.Currency)
	}

	updated, err := svc.Update(tariff.ID, CreateTariffInput{Name: "1 个月(改)", DurationDays: 31, Price: decimal.NewFromInt(249)})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.DurationDays != 31 || !updated.Price.Decimal.Equal(decimal.NewFromInt(249)) {
		t.Fatalf("update mismatch: %+v", updated)
	}

	if _, err := svc.Update(999, CreateTariffInput{Name: "x", DurationDays: 1, Price: decimal.NewFromInt(1)}); !errors.Is(err, ErrTariffNotFound) {
		t.Fatalf("expected ErrTariffNotFound, got: %v", err)
	}

	if err := svc.Delete(tariff.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.Get(tariff.ID); !errors.Is(err, ErrTariffNotFound) {
		t.Fatalf("expected deleted tariff to be gone, got: %v", err)
	}
}
