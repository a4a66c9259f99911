package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/noded/noded/internal/ipc"
	"github.com/noded/noded/internal/orchestrator"
	"github.com/spf13/cobra"
)

var (
	listJSON  bool
	listWatch bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List managed processes",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := newClient()
		if err != nil {
			exitOn(err)
			return
		}
		if err := requireRunningDaemon(client); err != nil {
			exitOn(err)
			return
		}

		if listWatch {
			if err := runListWatch(client); err != nil {
				exitOn(err)
			}
			return
		}

		procs, err := fetchList(client)
		if err != nil {
			exitOn(err)
			return
		}
		printList(procs)
	},
}

func fetchList(client *ipc.Client) ([]orchestrator.ManagedProcess, error) {
	var procs []orchestrator.ManagedProcess
	if err := client.List(&procs); err != nil {
		return nil, err
	}
	return procs, nil
}

func printList(procs []orchestrator.ManagedProcess) {
	if listJSON {
		data, _ := json.MarshalIndent(procs, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(procs) == 0 {
		PrintMuted("no managed processes. Get started:")
		PrintMuted("  $ noded start app.js")
		return
	}

	rows := make([][]string, 0, len(procs))
	for _, mp := range procs {
		rows = append(rows, []string{
			mp.Name,
			string(mp.Status),
			fmt.Sprintf("%d", len(mp.Instances)),
			fmt.Sprintf("%d", mp.AggregateRestarts),
			mp.Script,
		})
	}

	colorBorder := lipgloss.Color("#45475A")
	headerStyle := lipgloss.NewStyle().Foreground(colorInfo).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			dataRow := row - 1
			if dataRow < 0 || dataRow >= len(rows) {
				return mutedStyle
			}
			if col == 1 {
				switch rows[dataRow][1] {
				case string(orchestrator.StatusRunning):
					return successStyle
				case string(orchestrator.StatusErrored):
					return errorStyle
				case string(orchestrator.StatusReloading), string(orchestrator.StatusStarting):
					return warningStyle
				}
				return mutedStyle
			}
			if col == 4 {
				return mutedStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("NAME", "STATUS", "INSTANCES", "RESTARTS", "SCRIPT").
		Rows(rows...)

	fmt.Println(t.Render())
}

// runListWatch backs `list --watch`, the one CLI behavior that is
// inherently a live terminal view, adapted from the teacher's dashboard
// into a single auto-refreshing fleet table.
func runListWatch(client *ipc.Client) error {
	p := tea.NewProgram(newWatchModel(client))
	_, err := p.Run()
	return err
}

type watchModel struct {
	client *ipc.Client
	procs  []orchestrator.ManagedProcess
	err    error
}

type tickMsg time.Time

func newWatchModel(client *ipc.Client) watchModel {
	return watchModel{client: client}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(refreshCmd(m.client), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func refreshCmd(client *ipc.Client) tea.Cmd {
	return func() tea.Msg {
		procs, err := fetchList(client)
		return listRefreshedMsg{procs: procs, err: err}
	}
}

type listRefreshedMsg struct {
	procs []orchestrator.ManagedProcess
	err   error
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(refreshCmd(m.client), tickCmd())
	case listRefreshedMsg:
		m.procs = msg.procs
		m.err = msg.err
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(headerLine())
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		return b.String()
	}
	for _, mp := range m.procs {
		b.WriteString(fmt.Sprintf("%-20s %-12s %3d instances  restarts=%d\n", mp.Name, mp.Status, len(mp.Instances), mp.AggregateRestarts))
	}
	b.WriteString(mutedStyle.Render("\nq to quit"))
	return b.String()
}

func headerLine() string {
	return infoStyle.Render("noded — live fleet (refreshes every second)") + "\n\n"
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print as JSON")
	listCmd.Flags().BoolVarP(&listWatch, "watch", "w", false, "auto-refreshing live view")
}
