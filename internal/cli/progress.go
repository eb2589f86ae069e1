package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhenwang/tripflow/internal/client"
)

const pollInterval = time.Second

// estimatedSecondsPerDay drives the indeterminate progress bar; specialist
// research and synthesis scale roughly with the trip length.
const estimatedSecondsPerDay = 40

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers polling the task status
type tickMsg time.Time

// taskUpdateMsg carries the updated task data
type taskUpdateMsg struct {
	task *client.TaskResponse
	err  error
}

// progressModel is the bubbletea model for task progress.
type progressModel struct {
	client    *client.Client
	taskID    string
	task      *client.TaskResponse
	progress  progress.Model
	theme     Theme
	startedAt time.Time
	estimate  time.Duration
	done      bool
	quitting  bool
	err       error
}

// newProgressModel creates a new progress model.
func newProgressModel(c *client.Client, taskID string, days int) progressModel {
	// Create progress bar with color blend
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	if days <= 0 {
		days = 3
	}

	return progressModel{
		client:    c,
		taskID:    taskID,
		progress:  prog,
		theme:     defaultTheme,
		startedAt: time.Now(),
		estimate:  time.Duration(days*estimatedSecondsPerDay) * time.Second,
	}
}

// Init returns the initial command (start polling).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		// Fetch task status
		return m, m.fetchTask()

	case taskUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch task status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.task = msg.task

		// Check for terminal states
		switch m.task.Status {
		case "completed":
			m.done = true
			return m, tea.Quit
		case "failed", "rejected":
			m.done = true
			if m.task.Error != "" {
				m.err = fmt.Errorf("%s", m.task.Error)
			} else {
				m.err = fmt.Errorf("task failed with unknown error")
			}
			return m, tea.Quit
		}

		// Continue polling while pending
		return m, tickCmd()

	case progress.FrameMsg:
		// Update progress bar animation
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.task == nil {
		return "Submitting task...\n"
	}

	// The pipeline has no progress counter; approximate from elapsed time
	// and hold at 95% until the terminal state arrives.
	pct := float64(time.Since(m.startedAt)) / float64(m.estimate)
	if pct > 0.95 {
		pct = 0.95
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.task.Status))
	progressBar := m.progress.ViewAs(pct)
	elapsed := time.Since(m.startedAt).Round(time.Second)

	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, elapsed, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nTask %s continues in background.\nUse 'tripflow status %s' to check progress.\n",
			m.taskID, m.taskID)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		if m.task != nil && m.task.Status == "rejected" {
			return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Request rejected: %s\n", m.err))
		}
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Task failed: %s\n", m.err))
	}

	if m.task != nil && m.task.Result != nil {
		output := m.theme.completedStyle().Render("✓ Plan ready") + "\n"
		if posters := len(m.task.Posters); posters > 0 {
			output += fmt.Sprintf("  %d share posters rendered\n", posters)
		}
		return output
	}

	return m.theme.completedStyle().Render("✓ Completed\n")
}

// fetchTask fetches the current task status from the server.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m progressModel) fetchTask() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		task, err := m.client.TaskStatus(ctx, m.taskID)
		return taskUpdateMsg{task: task, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunTaskProgress runs the interactive progress UI for a planning task.
// Returns the completed task, or (nil, nil) when the user detached with
// Ctrl+C and the task keeps running server-side.
func RunTaskProgress(c *client.Client, taskID string, days int) (*client.TaskResponse, error) {
	model := newProgressModel(c, taskID, days)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		// If user quit with Ctrl+C, the task continues in background
		if m.quitting {
			return nil, nil
		}
		if m.err != nil {
			return nil, m.err
		}
		return m.task, nil
	}

	return nil, nil
}
