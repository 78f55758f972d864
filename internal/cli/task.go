package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"cicd-demo/pkg/task"
)

func (a *app) newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks directly in the configured store",
	}
	cmd.AddCommand(
		a.newTaskCreateCmd(),
		a.newTaskListCmd(),
		a.newTaskGetCmd(),
		a.newTaskUpdateCmd(),
		a.newTaskDeleteCmd(),
		a.newTaskStatsCmd(),
	)
	return cmd
}

// withService opens the configured store for the duration of fn.
func (a *app) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *task.Service) error) error {
	cfg, logger, closeLog, err := a.setup()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := task.NewService(store, logger)
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}

// taskFlags are the mutable fields shared by create and update.
type taskFlags struct {
	title       string
	description string
	status      string
	priority    string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&f.description, "description", "", "task description")
	cmd.Flags().StringVar(&f.status, "status", "", "TODO, IN_PROGRESS, DONE or CANCELLED (default TODO)")
	cmd.Flags().StringVar(&f.priority, "priority", "0", "integer or LOW, MEDIUM, HIGH, URGENT")
	_ = cmd.MarkFlagRequired("title")
}

func (f *taskFlags) task() (task.Task, error) {
	t := task.Task{Title: f.title, Description: f.description}
	if f.status != "" {
		status, err := task.ParseStatus(f.status)
		if err != nil {
			return task.Task{}, err
		}
		t.Status = status
	}
	p, err := task.ParsePriority(f.priority)
	if err != nil {
		return task.Task{}, err
	}
	t.Priority = p
	return t, nil
}

func (a *app) newTaskCreateCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.task()
			if err != nil {
				return err
			}
			return a.withService(cmd, func(ctx context.Context, svc *task.Service) error {
				created, err := svc.Create(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), created)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) newTaskListCmd() *cobra.Command {
	var (
		status string
		active bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long: `List tasks ordered by id. --status and --active select a subset ordered
by priority, most urgent first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && active {
				return fmt.Errorf("--status and --active are mutually exclusive")
			}
			return a.withService(cmd, func(ctx context.Context, svc *task.Service) error {
				var (
					tasks []task.Task
					err   error
				)
				switch {
				case active:
					tasks, err = svc.FindActive(ctx)
				case status != "":
					var st task.Status
					if st, err = task.ParseStatus(status); err == nil {
						tasks, err = svc.FindByStatus(ctx, st)
					}
				default:
					tasks, err = svc.FindAll(ctx)
				}
				if err != nil {
					return err
				}
				if tasks == nil {
					tasks = []task.Task{}
				}
				if format == "short" {
					printShortTasks(cmd.OutOrStdout(), tasks)
					return nil
				}
				return printJSON(cmd.OutOrStdout(), tasks)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only tasks with this status")
	cmd.Flags().BoolVar(&active, "active", false, "only tasks that are not cancelled")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or short")
	return cmd
}

func (a *app) newTaskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withService(cmd, func(ctx context.Context, svc *task.Service) error {
				t, ok, err := svc.FindByID(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("task %d not found", id)
				}
				return printJSON(cmd.OutOrStdout(), t)
			})
		},
	}
}

func (a *app) newTaskUpdateCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the title, description, status and priority of a task",
		Long: `Replace every mutable field of a task. Fields not given are reset:
description to empty, status to TODO, priority to 0.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			patch, err := f.task()
			if err != nil {
				return err
			}
			return a.withService(cmd, func(ctx context.Context, svc *task.Service) error {
				updated, ok, err := svc.Update(ctx, id, patch)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("task %d not found", id)
				}
				return printJSON(cmd.OutOrStdout(), updated)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) newTaskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withService(cmd, func(ctx context.Context, svc *task.Service) error {
				ok, err := svc.Delete(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("task %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted task %d\n", id)
				return nil
			})
		},
	}
}

func (a *app) newTaskStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *task.Service) error {
				stats, err := svc.Statistics(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

func truncStr(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func printShortTasks(w io.Writer, tasks []task.Task) {
	for _, t := range tasks {
		fmt.Fprintf(w, "%-6d  %-11s  %3d  %s\n", t.ID, t.Status, t.Priority, truncStr(t.Title, 60))
	}
}
