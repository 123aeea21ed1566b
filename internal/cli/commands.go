package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"studynotes-client/internal/app"
	"studynotes-client/internal/domain"
	"studynotes-client/internal/export"
	"studynotes-client/internal/jobs"
)

// NewSummaryCmd waits for a document summary and prints it.
func NewSummaryCmd(configPath *string) *cobra.Command {
	var generate bool
	cmd := &cobra.Command{
		Use:   "summary <document-id>",
		Short: "Wait for a document summary and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := loadRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			documentID := args[0]
			summaries := rt.summaryService()
			if generate {
				if err := summaries.Generate(ctx, documentID); err != nil {
					return err
				}
			}

			tracker := summaries.Watch(ctx, documentID)
			defer tracker.Stop()
			snap, err := tracker.Wait(ctx)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().BoolVar(&generate, "generate", false, "request generation once the document text is extracted")
	return cmd
}

func printSummary(w io.Writer, snap jobs.Snapshot[domain.Summary]) error {
	if snap.State != jobs.Succeeded {
		if snap.Error != "" {
			return errors.New(snap.Error)
		}
		return fmt.Errorf("summary for %s not available (%s)", snap.JobID, snap.State)
	}
	_, err := fmt.Fprintln(w, snap.Result.Text)
	return err
}

// NewQuizCmd groups quiz commands.
func NewQuizCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Generate and list quizzes",
	}
	cmd.AddCommand(newQuizGenerateCmd(configPath), newQuizListCmd(configPath))
	return cmd
}

func newQuizGenerateCmd(configPath *string) *cobra.Command {
	var (
		num   int
		types []string
	)
	cmd := &cobra.Command{
		Use:   "generate <document-id>",
		Short: "Generate a quiz from a document and wait until it is ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := loadRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			req := domain.GenerateQuizRequest{DocumentID: args[0], NumQuestions: num}
			for _, t := range types {
				req.QuestionTypes = append(req.QuestionTypes, domain.QuestionType(t))
			}
			gen := app.NewQuizGenerator(rt.client,
				app.WithGeneratorPolicies(rt.cfg.DocumentReadinessPolicy(), rt.cfg.QuizReadinessPolicy()),
				app.WithGeneratorTrackerOptions(jobs.WithLogger(rt.logger)),
				app.WithGeneratorLogger(rt.logger),
			)
			quiz, err := gen.Generate(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d questions\n", quiz.ID, quiz.Title, len(quiz.Questions))
			return nil
		},
	}
	cmd.Flags().IntVar(&num, "num", 5, "number of questions (1-20)")
	cmd.Flags().StringSliceVar(&types, "types", nil, "question types: multiple_choice, true_false, short_answer")
	return cmd
}

func newQuizListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list <document-id>",
		Short: "List the quizzes generated from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := loadRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			quizzes, err := rt.client.DocumentQuizzes(ctx, args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tQUESTIONS\tCREATED")
			for _, q := range quizzes {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", q.ID, q.Title, q.Status, q.TotalQuestions, q.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

// NewHistoryCmd prints the summary and quiz history.
func NewHistoryCmd(configPath *string) *cobra.Command {
	var (
		kind          string
		limit, offset int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List generated summaries and quizzes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := loadRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			page, err := rt.client.History(ctx, domain.HistoryKind(kind), limit, offset)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), page)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(domain.HistoryAll), "all, summaries or quizzes")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

func printHistory(w io.Writer, page domain.HistoryPage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tID\tDOCUMENT\tTITLE\tCREATED")
	for _, item := range page.Items {
		title := ""
		if item.Title != nil {
			title = *item.Title
		} else if item.Preview != nil {
			title = truncate(*item.Preview, 60)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", item.Type, item.ID, item.DocumentTitle, title, item.CreatedAt.Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d of %d\n", len(page.Items), page.Total)
	return err
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// NewFeedbackCmd rates summaries and quizzes.
func NewFeedbackCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Rate a summary or quiz, or list its feedback",
	}

	var (
		rating  int
		comment string
	)
	submit := &cobra.Command{
		Use:   "submit <summary|quiz> <content-id>",
		Short: "Rate a summary or quiz from 1 to 5",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := loadRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			fb, err := app.NewFeedbackService(rt.client).Submit(ctx, domain.FeedbackRequest{
				ContentType: domain.ContentType(args[0]),
				ContentID:   args[1],
				Rating:      rating,
				Comment:     comment,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "feedback %s saved\n", fb.ID)
			return nil
		},
	}
	submit.Flags().IntVar(&rating, "rating", 0, "rating from 1 to 5")
	submit.Flags().StringVar(&comment, "comment", "", "optional comment")
	_ = submit.MarkFlagRequired("rating")

	list := &cobra.Command{
		Use:   "list <summary|quiz> <content-id>",
		Short: "List feedback left on a summary or quiz",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := loadRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := app.NewFeedbackService(rt.client).List(ctx, domain.ContentType(args[0]), args[1])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tRATING\tCOMMENT\tCREATED")
			for _, e := range entries {
				c := ""
				if e.Comment != nil {
					c = truncate(*e.Comment, 60)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", e.ID, e.Rating, c, e.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(submit, list)
	return cmd
}

// NewAttemptsCmd exports recorded quiz attempts.
func NewAttemptsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Work with recorded quiz attempts",
	}

	var quizID, out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded attempts to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := loadRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.pool == nil {
				return fmt.Errorf("attempt history needs postgres: %w", domain.ErrNotConfigured)
			}

			attempts, err := rt.attemptStore().ListAttempts(ctx, quizID)
			if err != nil {
				return err
			}
			data, err := export.WriteAttempts(attempts)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			rt.logger.Info("attempts exported", "count", len(attempts), "file", out)
			return nil
		},
	}
	exportCmd.Flags().StringVar(&quizID, "quiz", "", "only attempts of this quiz")
	exportCmd.Flags().StringVar(&out, "out", "attempts.xlsx", "output file")

	cmd.AddCommand(exportCmd)
	return cmd
}
