// Package repl implements the interactive storyline shell.
package repl

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/storylinehq/storyline/internal/planning"
	"github.com/storylinehq/storyline/internal/session"
	"github.com/storylinehq/storyline/internal/waves"
)

// REPL represents the interactive shell
type REPL struct {
	sess     *session.Session
	rl       *readline.Instance
	ctx      context.Context
	commands map[string]CommandHandler
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// New creates a new REPL instance
func New(sess *session.Session) (*REPL, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is required")
	}

	r := &REPL{
		sess:     sess,
		commands: make(map[string]CommandHandler),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("storyline> "),
		HistoryFile:       "",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			} else if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if err == io.EOF {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("Error:"), err)
		}
	}
}

// processInput processes a single line of input
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	command := parts[0]
	args := parts[1:]

	if handler, ok := r.commands[command]; ok {
		return handler(args)
	}

	return fmt.Errorf("unknown command %q, type 'help' for available commands", command)
}

func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
	r.commands["status"] = r.cmdStatus
	r.commands["epics"] = r.cmdEpics
	r.commands["features"] = r.cmdFeatures
	r.commands["stories"] = r.cmdStories
	r.commands["tasks"] = r.cmdTasks
	r.commands["waves"] = r.cmdWaves
	r.commands["milestones"] = r.cmdMilestones
	r.commands["notifications"] = r.cmdNotifications
}

func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("Storyline"))
	fmt.Println("AI-assisted planning for epics, stories, and delivery waves")
	fmt.Println()
	fmt.Println("Type 'help' for available commands, 'exit' to quit")
	fmt.Println()
}

func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"help, ?", "Show this help message"},
		{"status", "Show tracker counts and unread notifications"},
		{"epics", "List all epics"},
		{"features <epic-id>", "List features under an epic"},
		{"stories <feature-id>", "List stories under a feature"},
		{"tasks <story-id>", "List tasks under a story"},
		{"waves <story-id>", "Show a story's tasks grouped by platform and wave"},
		{"milestones", "List milestones"},
		{"notifications", "List unread notifications"},
		{"exit, quit", "Exit the shell"},
	}
	for _, cmd := range commands {
		fmt.Printf("  %-24s %s\n", green(cmd.name), cmd.desc)
	}
	fmt.Println()
	return nil
}

func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Goodbye!\n", green("✓"))
	if r.rl != nil {
		r.rl.Close()
	}
	return io.EOF
}

func (r *REPL) cmdStatus(args []string) error {
	stats, err := r.sess.Store.GetStatistics(r.ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Epics: %d  Features: %d  Stories: %d  Tasks: %d  Milestones: %d\n",
		stats.Epics, stats.Features, stats.Stories, stats.Tasks, stats.Milestones)
	if stats.UnreadNotifications > 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s %d unread notification(s), see 'notifications'\n",
			yellow("!"), stats.UnreadNotifications)
	}
	return nil
}

func (r *REPL) cmdEpics(args []string) error {
	epics, err := r.sess.Store.ListEpics(r.ctx)
	if err != nil {
		return err
	}
	if len(epics) == 0 {
		fmt.Println("No epics yet")
		return nil
	}
	for _, e := range epics {
		fmt.Printf("%s  [%s]  %s\n", e.ID, e.Status, e.Title)
	}
	return nil
}

func (r *REPL) cmdFeatures(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: features <epic-id>")
	}
	features, err := r.sess.Store.ListFeatures(r.ctx, args[0])
	if err != nil {
		return err
	}
	if len(features) == 0 {
		fmt.Println("No features under this epic")
		return nil
	}
	for _, f := range features {
		fmt.Printf("%s  [%s]  %s\n", f.ID, f.Status, f.Title)
	}
	return nil
}

func (r *REPL) cmdStories(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: stories <feature-id>")
	}
	stories, err := r.sess.Store.ListStories(r.ctx, args[0])
	if err != nil {
		return err
	}
	if len(stories) == 0 {
		fmt.Println("No stories under this feature")
		return nil
	}
	for _, s := range stories {
		fmt.Printf("%s  [%s/%s]  %s\n", s.ID, s.Priority, s.Status, s.Narrative)
	}
	return nil
}

func (r *REPL) cmdTasks(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tasks <story-id>")
	}
	tasks, err := r.sess.Store.ListTasks(r.ctx, args[0])
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks under this story")
		return nil
	}
	for _, t := range tasks {
		fmt.Printf("%s  [%s/%s/%s]  %s\n", t.ID, t.Platform, t.Priority, t.Status, t.Name)
	}
	return nil
}

func (r *REPL) cmdWaves(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: waves <story-id>")
	}
	p, err := planning.New(r.sess.Store, nil, nil, nil)
	if err != nil {
		return err
	}
	groups, err := p.SavedWaves(r.ctx, args[0])
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Println("No tasks under this story")
		return nil
	}
	PrintWaveGroups(groups)
	return nil
}

func (r *REPL) cmdMilestones(args []string) error {
	milestones, err := r.sess.Store.ListMilestones(r.ctx)
	if err != nil {
		return err
	}
	if len(milestones) == 0 {
		fmt.Println("No milestones yet")
		return nil
	}
	for _, m := range milestones {
		due := "no due date"
		if m.DueDate != nil {
			due = m.DueDate.Format("2006-01-02")
		}
		fmt.Printf("%s  [%s]  %s (%s)\n", m.ID, m.Status, m.Title, due)
	}
	return nil
}

func (r *REPL) cmdNotifications(args []string) error {
	notes, err := r.sess.Store.ListNotifications(r.ctx, true, 20)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		fmt.Println("No unread notifications")
		return nil
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	for _, n := range notes {
		fmt.Printf("%s %s  %s\n", yellow("!"), n.CreatedAt.Format("2006-01-02 15:04"), n.Message)
		if err := r.sess.Store.MarkNotificationRead(r.ctx, n.ID); err != nil {
			return err
		}
	}
	return nil
}

// PrintWaveGroups renders platform groups in fixed wave order. The CLI
// waves and plan commands share this output.
func PrintWaveGroups(groups []waves.PlatformGroup) {
	bold := color.New(color.Bold).SprintFunc()
	for _, group := range groups {
		fmt.Printf("\n%s\n", bold(strings.ToUpper(string(group.Platform))))
		for _, wave := range waves.AllWaves() {
			tasks := group.Waves[wave]
			if len(tasks) == 0 {
				continue
			}
			fmt.Printf("  Wave %d (%s):\n", wave.Number(), wave)
			for _, t := range tasks {
				line := fmt.Sprintf("    [%s] %s", t.Priority, t.Name)
				if len(t.Dependencies) > 0 {
					line += fmt.Sprintf(" (after: %s)", strings.Join(t.Dependencies, ", "))
				}
				fmt.Println(line)
			}
		}
	}
	fmt.Println()
}
