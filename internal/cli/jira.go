package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/storyqa/internal/jira"
	"github.com/ppiankov/storyqa/internal/predict"
	"github.com/ppiankov/storyqa/internal/render"
)

var (
	viaService bool
	listSearch string
)

// jiraCmd represents the jira command
var jiraCmd = &cobra.Command{
	Use:   "jira",
	Short: "Work with the configured Jira project",
	Long: `Check Jira credentials and browse the project's stories.

Credentials come from config (jira.domain, jira.email, jira.project) and
the environment (JIRA_API_TOKEN, JIRA_EMAIL, JIRA_DOMAIN).`,
}

var jiraVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check Jira credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newServices()
		if err != nil {
			return err
		}
		session, err := svc.jiraSession()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
		defer cancel()

		if viaService {
			res, err := svc.service.VerifyCredentials(ctx, predict.Credentials{
				Email:      session.Email,
				APIToken:   session.Token,
				JiraDomain: session.Domain,
				Board:      session.Board,
			})
			if err != nil {
				return fmt.Errorf("verify credentials: %w", err)
			}
			if !res.Success {
				return fmt.Errorf("%w: %s", jira.ErrInvalidCredentials, res.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", res.Message)
			return nil
		}

		client, err := svc.jiraClient()
		if err != nil {
			return err
		}
		if err := client.Verify(ctx); err != nil {
			if errors.Is(err, jira.ErrInvalidCredentials) {
				return fmt.Errorf("%w for %s", err, session)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Credentials are valid for %s\n", session)
		return nil
	},
}

var jiraListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stories in the configured project",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newServices()
		if err != nil {
			return err
		}
		client, err := svc.jiraClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
		defer cancel()

		stories, err := client.FetchStories(ctx)
		if err != nil {
			return fmt.Errorf("import from jira: %w", err)
		}
		stories = jira.Search(stories, listSearch)

		if svc.cfg.Output.Format == "json" {
			return render.WriteJSON(cmd.OutOrStdout(), stories)
		}
		out := cmd.OutOrStdout()
		for _, s := range stories {
			fmt.Fprintf(out, "%-12s %-12s %s\n", s.Key, s.Status, s.Summary)
		}
		fmt.Fprintf(out, "\n%d stories\n", len(stories))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jiraCmd)
	jiraCmd.AddCommand(jiraVerifyCmd)
	jiraCmd.AddCommand(jiraListCmd)

	jiraVerifyCmd.Flags().BoolVar(&viaService, "via-service", false, "ask the prediction service to check the credentials")
	jiraVerifyCmd.Flags().DurationVar(&runTimeout, "timeout", defaultRunTimeout, "overall timeout")
	jiraListCmd.Flags().StringVar(&listSearch, "search", "", "show only stories whose summary or description contains this text")
	jiraListCmd.Flags().DurationVar(&runTimeout, "timeout", defaultRunTimeout, "overall timeout")
}
