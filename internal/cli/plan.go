package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhenwang/tripflow/internal/models"
)

var (
	planOrigin      string
	planDestination string
	planDays        int
	planBudget      string
	planPrefs       []string
	planStartDate   string
	planNoWait      bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate a travel itinerary",
	Long: `Submit a planning request and follow it to completion.

Examples:
  tripflow plan --from 重庆 --to 兴义 --days 3 --budget 中等 --prefs 自然风光,美食
  tripflow plan --from 北京 --to 成都 --days 5 --no-wait`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planOrigin, "from", "", "origin city (required)")
	planCmd.Flags().StringVar(&planDestination, "to", "", "destination city (required)")
	planCmd.Flags().IntVar(&planDays, "days", 3, "trip length in days")
	planCmd.Flags().StringVar(&planBudget, "budget", "中等", "budget level")
	planCmd.Flags().StringSliceVar(&planPrefs, "prefs", nil, "travel preferences")
	planCmd.Flags().StringVar(&planStartDate, "start", "", "start date (YYYY-MM-DD, default today)")
	planCmd.Flags().BoolVar(&planNoWait, "no-wait", false, "submit and print the task id without waiting")
	planCmd.MarkFlagRequired("from")
	planCmd.MarkFlagRequired("to")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if planStartDate == "" {
		planStartDate = time.Now().Format("2006-01-02")
	}

	req := models.TripRequest{
		Origin:      planOrigin,
		Destination: planDestination,
		Days:        planDays,
		BudgetLevel: planBudget,
		Preferences: planPrefs,
		StartDate:   planStartDate,
	}

	submitted, err := apiClient.SubmitPlan(ctx, req)
	if err != nil {
		return fmt.Errorf("submit plan: %w", err)
	}

	if planNoWait {
		fmt.Printf("Task submitted: %s\n", submitted.TaskID)
		fmt.Printf("Check progress with 'tripflow status %s'\n", submitted.TaskID)
		return nil
	}

	task, err := RunTaskProgress(apiClient, submitted.TaskID, planDays)
	if err != nil {
		return err
	}
	if task == nil {
		return nil
	}

	fmt.Print(renderPlan(task))
	return nil
}
