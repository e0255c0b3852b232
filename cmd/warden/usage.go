package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"fathomdata/warden/pkg/cli"
	"fathomdata/warden/pkg/config"
	"fathomdata/warden/pkg/usage"
)

var usageFlags struct {
	org    string
	tier   string
	days   int
	format string
	output string
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Query the usage event log",
	Long: `Query the usage event log for an organization.

The usage command reads the configured event store directly, so it works
against the same database the server writes to.

Subcommands:
  summary - Aggregate usage by event type over a lookback period
  limits  - Report quota consumption against the organization's tier

Examples:
  # Last 30 days of usage for one org
  warden usage summary --org org-123

  # Quota standing for a pilot tier org
  warden usage limits --org org-123 --tier pilot

  # Export summary to JSON file
  warden usage summary --org org-123 --format json --output usage.json`,
}

var usageSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregate usage by event type",
	Long: `Aggregate usage events by type over a lookback period.

Examples:
  # Default 30 day lookback
  warden usage summary --org org-123

  # Last week only
  warden usage summary --org org-123 --days 7`,
	RunE: summarizeUsage,
}

var usageLimitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Report quota consumption for the current month",
	Long:  `Report per-dimension quota consumption against the organization's tier ceilings.`,
	RunE:  reportLimits,
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageSummaryCmd, usageLimitsCmd)

	usageSummaryCmd.Flags().StringVar(&usageFlags.org, "org", "", "organization ID (required)")
	usageSummaryCmd.Flags().IntVar(&usageFlags.days, "days", 30, "lookback period in days")
	usageSummaryCmd.Flags().StringVar(&usageFlags.format, "format", "text", "output format: text, json")
	usageSummaryCmd.Flags().StringVarP(&usageFlags.output, "output", "o", "", "output file (default: stdout)")
	_ = usageSummaryCmd.MarkFlagRequired("org")

	usageLimitsCmd.Flags().StringVar(&usageFlags.org, "org", "", "organization ID (required)")
	usageLimitsCmd.Flags().StringVar(&usageFlags.tier, "tier", "pilot", "subscription tier: trial, pilot, subscription")
	usageLimitsCmd.Flags().StringVar(&usageFlags.format, "format", "text", "output format: text, json")
	usageLimitsCmd.Flags().StringVarP(&usageFlags.output, "output", "o", "", "output file (default: stdout)")
	_ = usageLimitsCmd.MarkFlagRequired("org")
}

func summarizeUsage(cmd *cobra.Command, args []string) error {
	evaluator, cleanup, err := openEvaluator()
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := evaluator.Summarize(context.Background(), usageFlags.org, usageFlags.days)
	if err != nil {
		return cli.NewCommandError("usage", fmt.Errorf("summary failed: %w", err))
	}

	output, closeOutput, err := openOutput()
	if err != nil {
		return err
	}
	defer closeOutput()

	switch usageFlags.format {
	case "json":
		return outputJSON(output, summary)
	default:
		return outputSummaryText(output, summary)
	}
}

func reportLimits(cmd *cobra.Command, args []string) error {
	evaluator, cleanup, err := openEvaluator()
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := evaluator.CheckAll(context.Background(), usageFlags.org, usage.ParseTier(usageFlags.tier))
	if err != nil {
		return cli.NewCommandError("usage", fmt.Errorf("limits check failed: %w", err))
	}

	output, closeOutput, err := openOutput()
	if err != nil {
		return err
	}
	defer closeOutput()

	switch usageFlags.format {
	case "json":
		if err := outputJSON(output, report); err != nil {
			return err
		}
	default:
		if err := outputLimitsText(output, report); err != nil {
			return err
		}
	}

	// Exit nonzero when a ceiling is exceeded so scripts can gate on it.
	return exceededError(report)
}

// exceededError returns a QuotaError for the first exceeded dimension, or
// nil when the organization is within all ceilings.
func exceededError(report *usage.LimitsReport) error {
	dims := []struct {
		eventType usage.EventType
		status    usage.DimensionStatus
	}{
		{usage.EventCSVUpload, report.CSVUploads},
		{usage.EventCSVRowProcessed, report.CSVRows},
		{usage.EventAnalysisRun, report.Analyses},
		{usage.EventChatMessage, report.ChatMessages},
		{usage.EventAITokensInput, report.AITokens.DimensionStatus},
	}
	for _, dim := range dims {
		if !dim.status.WithinLimit {
			return &usage.QuotaError{
				OrgID:   report.OrgID,
				Type:    dim.eventType,
				Current: dim.status.Current,
				Limit:   dim.status.Limit,
			}
		}
	}
	return nil
}

// openEvaluator loads the config and builds an evaluator over the
// configured event store. The returned cleanup closes the store.
func openEvaluator() (*usage.Evaluator, func(), error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	store, err := buildStore(&cfg.Usage.Storage)
	if err != nil {
		return nil, nil, cli.NewCommandError("usage", fmt.Errorf("failed to open usage store: %w", err))
	}

	limits := usage.NewTierLimitTable(tierOverrides(cfg.Usage.TierOverrides))
	evaluator := usage.NewEvaluator(store, limits)
	return evaluator, func() { _ = store.Close() }, nil
}

// openOutput returns the destination writer selected by --output.
func openOutput() (*os.File, func(), error) {
	if usageFlags.output == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(usageFlags.output)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func outputJSON(output *os.File, v interface{}) error {
	return cli.NewFormatter(cli.FormatJSON).FormatTo(output, v)
}

func outputSummaryText(output *os.File, summary *usage.Summary) error {
	fmt.Fprintf(output, "Usage summary for %s\n", summary.OrgID)
	fmt.Fprintf(output, "Period: last %d days\n", summary.PeriodDays)
	fmt.Fprintf(output, "Generated: %s\n", summary.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(output, "Total events: %d\n", summary.TotalEvents)
	fmt.Fprintln(output)

	if len(summary.ByType) == 0 {
		fmt.Fprintln(output, "No events recorded in this period.")
		return nil
	}

	types := make([]string, 0, len(summary.ByType))
	for eventType := range summary.ByType {
		types = append(types, string(eventType))
	}
	sort.Strings(types)

	for _, eventType := range types {
		agg := summary.ByType[usage.EventType(eventType)]
		fmt.Fprintf(output, "%s:\n", eventType)
		fmt.Fprintf(output, "  Events: %d\n", agg.Count)
		fmt.Fprintf(output, "  Quantity: %d\n", agg.TotalQuantity)
		fmt.Fprintf(output, "  First seen: %s\n", agg.FirstSeen.Format(time.RFC3339))
		fmt.Fprintf(output, "  Last seen: %s\n", agg.LastSeen.Format(time.RFC3339))
	}

	return nil
}

func outputLimitsText(output *os.File, report *usage.LimitsReport) error {
	fmt.Fprintf(output, "Quota report for %s (tier: %s)\n", report.OrgID, report.Tier)
	fmt.Fprintln(output, "Period: current calendar month")
	fmt.Fprintln(output)

	dims := []struct {
		name   string
		status usage.DimensionStatus
	}{
		{"CSV uploads", report.CSVUploads},
		{"CSV rows", report.CSVRows},
		{"Analyses", report.Analyses},
		{"Chat messages", report.ChatMessages},
		{"AI tokens", report.AITokens.DimensionStatus},
	}

	for _, dim := range dims {
		limit := "unlimited"
		if dim.status.Limit != usage.Unlimited {
			limit = fmt.Sprintf("%d", dim.status.Limit)
		}
		marker := "✓"
		if !dim.status.WithinLimit {
			marker = "✗"
		}
		fmt.Fprintf(output, "%s %s: %d / %s %s\n", marker, dim.name, dim.status.Current, limit, dim.status.Unit)
	}

	fmt.Fprintf(output, "  AI token breakdown: %d input, %d output\n",
		report.AITokens.Breakdown.InputTokens,
		report.AITokens.Breakdown.OutputTokens,
	)

	return nil
}
