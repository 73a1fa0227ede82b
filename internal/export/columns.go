package export

import (
	"github.com/samber/lo"

	"github.com/mtlprog/mstate/internal/fixedpoint"
)

const (
	basketSheet  = "BASKET"
	summarySheet = "SUMMARY"
	historySheet = "HISTORY"
)

// column describes one report column and how to read it from a row.
type column[T any] struct {
	header string
	value  func(T) any
}

var basketColumns = []column[BasketRow]{
	{header: "Masset", value: func(r BasketRow) any { return string(r.Masset) }},
	{header: "Pool", value: func(r BasketRow) any { return r.Pool }},
	{header: "Symbol", value: func(r BasketRow) any { return r.Symbol }},
	{header: "Address", value: func(r BasketRow) any { return r.Address }},
	{header: "Status", value: func(r BasketRow) any { return string(r.Status) }},
	{header: "Vault", value: func(r BasketRow) any { return toFloat(r.Vault) }},
	{header: "Vault (masset units)", value: func(r BasketRow) any { return toFloat(r.VaultInMasset) }},
	{header: "Share", value: func(r BasketRow) any { return toFloat(r.Share) }},
	{header: "Max Weight (masset units)", value: func(r BasketRow) any { return toFloat(r.MaxWeight) }},
	{header: "Overweight", value: func(r BasketRow) any { return flag(r.Overweight) }},
	{header: "Transfer Fee", value: func(r BasketRow) any { return flag(r.TransferFeeFlag) }},
}

var summaryColumns = []column[MassetSummary]{
	{header: "Masset", value: func(s MassetSummary) any { return string(s.Masset) }},
	{header: "Symbol", value: func(s MassetSummary) any { return s.Symbol }},
	{header: "Total Vault", value: func(s MassetSummary) any { return toFloat(s.TotalVault) }},
	{header: "Bassets", value: func(s MassetSummary) any { return s.Bassets }},
	{header: "Overweight", value: func(s MassetSummary) any { return s.Overweight }},
	{header: "Feeder Pools", value: func(s MassetSummary) any { return s.FeederPools }},
	{header: "Save APY", value: func(s MassetSummary) any { return s.SaveAPY }},
}

// buildTable returns a header row followed by one row per item.
func buildTable[T any](cols []column[T], items []T) [][]any {
	data := make([][]any, 0, len(items)+1)
	data = append(data, lo.Map(cols, func(c column[T], _ int) any { return c.header }))
	for _, item := range items {
		data = append(data, lo.Map(cols, func(c column[T], _ int) any { return c.value(item) }))
	}
	return data
}

// buildHistoryRows returns one row per masset for the append-only HISTORY sheet.
// Columns: Date | Masset | Total Vault | Overweight
func buildHistoryRows(report Report) [][]any {
	date := report.GeneratedAt.UTC().Format("02.01.2006")
	return lo.Map(report.Summary, func(s MassetSummary, _ int) []any {
		return []any{date, string(s.Masset), toFloat(s.TotalVault), s.Overweight}
	})
}

var historyHeader = []any{"Date", "Masset", "Total Vault", "Overweight"}

func toFloat(d fixedpoint.Decimal) float64 {
	return d.Float64()
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}
