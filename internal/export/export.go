// Package export writes basket reports to spreadsheet destinations.
package export

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/mtlprog/mstate/internal/domain"
	"github.com/mtlprog/mstate/internal/fixedpoint"
)

// BasketRow is one basket asset of a masset or of one of its feeder pools.
type BasketRow struct {
	Masset          domain.MassetName
	Pool            string // feeder pool title; empty for the masset basket
	Symbol          string
	Address         string
	Status          domain.BassetStatus
	Vault           fixedpoint.Decimal
	VaultInMasset   fixedpoint.Decimal
	Share           fixedpoint.Decimal
	MaxWeight       fixedpoint.Decimal
	Overweight      bool
	TransferFeeFlag bool
}

// MassetSummary aggregates one masset basket.
type MassetSummary struct {
	Masset      domain.MassetName
	Symbol      string
	TotalVault  fixedpoint.Decimal
	Bassets     int
	Overweight  int
	FeederPools int
	SaveAPY     float64
}

// Report is everything written by one export.
type Report struct {
	GeneratedAt time.Time
	Rows        []BasketRow
	Summary     []MassetSummary
}

// SheetWriter writes a report to a spreadsheet destination.
type SheetWriter interface {
	Write(ctx context.Context, report Report) error
}

// Service builds basket reports and delegates writing to SheetWriters.
type Service struct {
	writers []SheetWriter
}

// NewService creates a new export Service.
func NewService(writers ...SheetWriter) *Service {
	return &Service{writers: lo.Filter(writers, func(w SheetWriter, _ int) bool { return w != nil })}
}

// Export builds the report for state and writes it to every destination.
// Implements worker.Exporter.
func (s *Service) Export(ctx context.Context, state domain.DataState) error {
	report := BuildReport(state, time.Now().UTC())
	var errs []error
	for _, w := range s.writers {
		if err := w.Write(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AfterTick exports every published state. Implements worker.AfterTickHook.
func (s *Service) AfterTick(ctx context.Context, state domain.DataState) error {
	return s.Export(ctx, state)
}

// BuildReport flattens a state tree into report rows, ordered by masset, pool and symbol.
func BuildReport(state domain.DataState, at time.Time) Report {
	report := Report{GeneratedAt: at}
	for _, name := range domain.MassetNames {
		m, ok := state[name]
		if !ok {
			continue
		}

		rows := lo.MapToSlice(m.BAssets, func(_ string, b domain.BassetState) BasketRow {
			return basketRow(name, "", b)
		})
		for _, fp := range m.FeederPools {
			rows = append(rows,
				basketRow(name, fp.Title, fp.Masset.BassetState),
				basketRow(name, fp.Title, fp.Fasset.BassetState),
			)
		}
		slices.SortFunc(rows, func(a, b BasketRow) int {
			return cmp.Or(cmp.Compare(a.Pool, b.Pool), cmp.Compare(a.Symbol, b.Symbol))
		})
		report.Rows = append(report.Rows, rows...)
		report.Summary = append(report.Summary, summarize(name, m))
	}
	return report
}

func basketRow(name domain.MassetName, pool string, b domain.BassetState) BasketRow {
	return BasketRow{
		Masset:          name,
		Pool:            pool,
		Symbol:          b.Token.Symbol,
		Address:         b.Address,
		Status:          b.Status,
		Vault:           b.TotalVault,
		VaultInMasset:   b.TotalVaultInMasset,
		Share:           b.BasketShare,
		MaxWeight:       b.MaxWeightInMasset,
		Overweight:      b.Overweight,
		TransferFeeFlag: b.IsTransferFeeCharged,
	}
}

func summarize(name domain.MassetName, m domain.MassetState) MassetSummary {
	bassets := lo.Values(m.BAssets)
	total, err := fixedpoint.Sum(lo.Map(bassets, func(b domain.BassetState, _ int) fixedpoint.Decimal {
		return b.TotalVaultInMasset
	})...)
	if err != nil {
		total = fixedpoint.Zero(fixedpoint.DefaultDecimals)
	}
	return MassetSummary{
		Masset:      name,
		Symbol:      m.Token.Symbol,
		TotalVault:  total,
		Bassets:     len(bassets),
		Overweight:  lo.CountBy(bassets, func(b domain.BassetState) bool { return b.Overweight }),
		FeederPools: len(m.FeederPools),
		SaveAPY:     m.SavingsContracts.V2.DailyAPY,
	}
}
