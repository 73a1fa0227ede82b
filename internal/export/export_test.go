package export

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mtlprog/mstate/internal/domain"
	"github.com/mtlprog/mstate/internal/fixedpoint"
)

func basset(symbol string, vault string, overweight bool) domain.BassetState {
	return domain.BassetState{
		Address:            "0x" + symbol,
		Token:              domain.SubscribedToken{Token: domain.Token{Symbol: symbol, Decimals: 18}},
		Ratio:              big.NewInt(100_000_000),
		Status:             domain.BassetStatusNormal,
		TotalVault:         fixedpoint.MustParse(vault, 18),
		TotalVaultInMasset: fixedpoint.MustParse(vault, 18),
		BasketShare:        fixedpoint.MustParse("0.5", 18),
		Overweight:         overweight,
	}
}

func testState() domain.DataState {
	return domain.DataState{
		domain.MassetMUSD: {
			Token: domain.SubscribedToken{Token: domain.Token{Symbol: "mUSD"}},
			BAssets: map[string]domain.BassetState{
				"0xusdc": basset("USDC", "100", false),
				"0xdai":  basset("DAI", "300", true),
			},
			FeederPools: map[string]domain.FeederPoolState{
				"0xpool": {
					Title:  "mUSD/GUSD",
					Masset: domain.FassetState{BassetState: basset("mUSD", "10", false)},
					Fasset: domain.FassetState{BassetState: basset("GUSD", "10", false)},
				},
			},
			SavingsContracts: domain.SavingsContracts{
				V2: domain.SavingsContractV2State{SavingsContract: domain.SavingsContract{DailyAPY: 4.2}},
			},
		},
	}
}

func TestBuildReport(t *testing.T) {
	at := time.Date(2026, 2, 24, 12, 0, 0, 0, time.UTC)
	report := BuildReport(testState(), at)

	if len(report.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(report.Rows))
	}
	wantOrder := []string{"DAI", "USDC", "GUSD", "mUSD"}
	for i, want := range wantOrder {
		if report.Rows[i].Symbol != want {
			t.Errorf("row %d symbol = %s, want %s", i, report.Rows[i].Symbol, want)
		}
	}
	if report.Rows[2].Pool != "mUSD/GUSD" {
		t.Errorf("pool = %q, want mUSD/GUSD", report.Rows[2].Pool)
	}

	if len(report.Summary) != 1 {
		t.Fatalf("summary = %d, want 1", len(report.Summary))
	}
	s := report.Summary[0]
	if !s.TotalVault.Equal(fixedpoint.MustParse("400", 18)) {
		t.Errorf("total vault = %s, want 400", s.TotalVault)
	}
	if s.Bassets != 2 || s.Overweight != 1 || s.FeederPools != 1 || s.SaveAPY != 4.2 {
		t.Errorf("summary = %+v", s)
	}
}

func TestBuildTable(t *testing.T) {
	report := BuildReport(testState(), time.Now())
	data := buildTable(basketColumns, report.Rows)

	if len(data) != 5 {
		t.Fatalf("table rows = %d, want 5", len(data))
	}
	for i, row := range data {
		if len(row) != len(basketColumns) {
			t.Errorf("row %d: %d columns, want %d", i, len(row), len(basketColumns))
		}
	}
	if data[0][0] != "Masset" {
		t.Errorf("header[0] = %v, want Masset", data[0][0])
	}
	// DAI: share 0.5, overweight flag 1
	if data[1][7] != 0.5 {
		t.Errorf("share = %v, want 0.5", data[1][7])
	}
	if data[1][9] != 1 {
		t.Errorf("overweight = %v, want 1", data[1][9])
	}
}

func TestBuildHistoryRows(t *testing.T) {
	at := time.Date(2026, 2, 24, 12, 0, 0, 0, time.UTC)
	rows := buildHistoryRows(BuildReport(testState(), at))
	if len(rows) != 1 {
		t.Fatalf("history rows = %d, want 1", len(rows))
	}
	if rows[0][0] != "24.02.2026" || rows[0][1] != "musd" || rows[0][2] != 400.0 {
		t.Errorf("history row = %v", rows[0])
	}
}

func TestXLSXWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "basket.xlsx")
	svc := NewService(NewXLSXWriter(path))

	if err := svc.Export(context.Background(), testState()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
		t.Error("default sheet should be removed")
	}

	rows, err := f.GetRows(basketSheet)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", basketSheet, err)
	}
	if len(rows) != 5 {
		t.Fatalf("basket rows = %d, want 5", len(rows))
	}
	if rows[0][2] != "Symbol" || rows[1][2] != "DAI" || rows[1][0] != "musd" {
		t.Errorf("basket rows = %v", rows[:2])
	}

	summary, err := f.GetRows(summarySheet)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", summarySheet, err)
	}
	if len(summary) != 2 || summary[1][2] != "400" {
		t.Errorf("summary = %v", summary)
	}
}

type failingWriter struct{}

func (failingWriter) Write(context.Context, Report) error { return errors.New("quota exceeded") }

func TestServiceJoinsWriterErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "basket.xlsx")
	svc := NewService(failingWriter{}, nil, NewXLSXWriter(path))

	if err := svc.AfterTick(context.Background(), testState()); err == nil {
		t.Fatal("expected error, got nil")
	}
	if _, err := excelize.OpenFile(path); err != nil {
		t.Errorf("xlsx writer should still run after a failing writer: %v", err)
	}
}
