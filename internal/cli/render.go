package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhenwang/tripflow/internal/client"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(defaultTheme.Status)
	dayStyle   = lipgloss.NewStyle().Bold(true)
	costStyle  = lipgloss.NewStyle().Foreground(defaultTheme.Success)
	dimStyle   = lipgloss.NewStyle().Foreground(defaultTheme.Hint)
)

// renderPlan formats a completed plan for the terminal.
func renderPlan(task *client.TaskResponse) string {
	if task == nil || task.Result == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("行程规划") + "\n")
	if total := task.Result.TotalCost(); total > 0 {
		b.WriteString(costStyle.Render(fmt.Sprintf("预计总花费: ¥%.0f", total)) + "\n")
	}
	b.WriteString("\n")

	for _, day := range task.Result.DailyPlans() {
		header := fmt.Sprintf("第%d天", day.Day)
		if day.Date != "" {
			header += "  " + dimStyle.Render(day.Date)
		}
		if day.TotalDayCost > 0 {
			header += "  " + costStyle.Render(fmt.Sprintf("¥%.0f", day.TotalDayCost))
		}
		b.WriteString(dayStyle.Render(header) + "\n")

		for _, act := range day.Activities {
			line := "  "
			if act.Time != "" {
				line += dimStyle.Render(act.Time) + "  "
			}
			line += act.Activity
			if act.Location != "" {
				line += dimStyle.Render(" @ " + act.Location)
			}
			if act.Cost > 0 {
				line += "  " + costStyle.Render(fmt.Sprintf("¥%.0f", act.Cost))
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	if len(task.Posters) > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d 张分享海报已生成\n", len(task.Posters))))
	}

	return b.String()
}
