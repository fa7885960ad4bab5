package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"inspector/internal/extracthtml"
	"inspector/internal/storage"
)

func newTemplateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage saved rule sets",
	}
	cmd.AddCommand(
		newTemplateSaveCmd(a),
		newTemplateListCmd(a),
		newTemplateShowCmd(a),
		newTemplateDeleteCmd(a),
	)
	return cmd
}

func newTemplateSaveCmd(a *app) *cobra.Command {
	var rulesPath string
	cmd := &cobra.Command{
		Use:   "save [name]",
		Short: "Save a rule file as a template (name defaults to the file's name)",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if rulesPath == "" {
				return usagef("missing --rules")
			}
			rf, err := extracthtml.LoadRuleFile(rulesPath)
			if err != nil {
				return usageError{err: fmt.Errorf("load rules: %w", err)}
			}
			name := rf.Name
			if len(args) == 1 {
				name = args[0]
			}
			if storage.NormalizeName(name) == "" {
				return usagef("template name is required (argument or \"name\" in the rule file)")
			}

			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}
			t, err := repo.SaveTemplate(ctx, storage.Template{Name: name, Rules: rf.Rules})
			if err != nil {
				return err
			}
			a.activity(ctx, storage.LogTemplate, "template %s saved (%d rules)", t.Name, len(t.Rules))
			fmt.Fprintf(a.stdout, "saved template %q (%s)\n", t.Name, t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "", "Path to the rule file")
	return cmd
}

func newTemplateListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := a.repository(cmd.Context())
			if err != nil {
				return err
			}
			list, err := repo.ListTemplates(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tRULES\tCREATED")
			for _, t := range list {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", t.Name, len(t.Rules), t.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newTemplateShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a template as a rule file",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository(cmd.Context())
			if err != nil {
				return err
			}
			t, err := repo.GetTemplate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.stdout)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(extracthtml.RuleFile{Name: t.Name, Rules: t.Rules})
		},
	}
}

func newTemplateDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a template",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}
			if err := repo.DeleteTemplate(ctx, args[0]); err != nil {
				return err
			}
			a.activity(ctx, storage.LogTemplate, "template %s deleted", storage.NormalizeName(args[0]))
			fmt.Fprintf(a.stdout, "deleted template %q\n", storage.NormalizeName(args[0]))
			return nil
		},
	}
}
