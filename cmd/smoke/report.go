package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

type report struct {
	variants     []requestVariant
	byVariant    map[string]testResult
	total        int
	failedCount  int
	skippedCount int
}

// buildReport indexes results by variant and counts outcomes.
func buildReport(variants []requestVariant, results []testResult) report {
	byVariant := make(map[string]testResult, len(results))
	failed, skipped := 0, 0
	for _, res := range results {
		byVariant[res.Variant] = res
		switch {
		case res.Skipped:
			skipped++
		case !res.Success:
			failed++
		}
	}

	return report{
		variants:     variants,
		byVariant:    byVariant,
		total:        len(results),
		failedCount:  failed,
		skippedCount: skipped,
	}
}

// renderReport prints one row per variant followed by totals.
func renderReport(rep report) {
	if len(rep.variants) == 0 {
		fmt.Println("no variants selected")
		return
	}

	fmt.Println()
	fmt.Println("=== ml-infra smoke run ===")
	fmt.Println()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Variant", "Outcome", "Status", "Duration", "Detail"})
	table.SetAutoWrapText(false)
	for _, variant := range rep.variants {
		table.Append(reportRow(variant, rep.byVariant[variant.Key]))
	}
	table.Render()

	passed := rep.total - rep.failedCount - rep.skippedCount
	fmt.Printf("\nTotals  | Variants: %d | Passed: %d | Failed: %d | Skipped: %d\n\n",
		rep.total, passed, rep.failedCount, rep.skippedCount)
}

func reportRow(variant requestVariant, res testResult) []string {
	if res.Variant == "" {
		return []string{variant.Header, "-", "", "", ""}
	}

	outcome := "FAIL"
	switch {
	case res.Success:
		outcome = "PASS"
	case res.Skipped:
		outcome = "SKIP"
	}

	status := ""
	if res.StatusCode != 0 {
		status = strconv.Itoa(res.StatusCode)
	}
	return []string{
		variant.Header,
		outcome,
		status,
		res.Duration.Truncate(10 * time.Millisecond).String(),
		shorten(res.ErrorReason, 80),
	}
}
