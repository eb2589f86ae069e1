package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusWait bool

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the state of a planning task",
	Long: `Show the current state of a planning task, or follow it to completion.

Examples:
  tripflow status 7f3a...           # One-shot snapshot
  tripflow status 7f3a... --wait    # Follow until terminal`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWait, "wait", false, "follow the task until it finishes")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	taskID := args[0]

	if statusWait {
		task, err := RunTaskProgress(apiClient, taskID, 0)
		if err != nil {
			return err
		}
		if task == nil {
			return nil
		}
		fmt.Print(renderPlan(task))
		return nil
	}

	task, err := apiClient.TaskStatus(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	fmt.Printf("Task: %s\n", task.TaskID)
	fmt.Printf("  Status: %s\n", task.Status)
	fmt.Printf("  Created: %s\n", task.CreatedAt.Format(time.RFC3339))
	if task.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", task.CompletedAt.Format(time.RFC3339))
		duration := task.CompletedAt.Sub(task.CreatedAt)
		fmt.Printf("  Duration: %s\n", duration.Round(time.Second))
	}
	if task.Error != "" {
		fmt.Printf("  Error: %s\n", task.Error)
	}

	if task.Status == "completed" {
		fmt.Println()
		fmt.Print(renderPlan(task))
	}
	return nil
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server liveness",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiClient.Health(ctx); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}
