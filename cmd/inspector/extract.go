package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"inspector/internal/export"
	"inspector/internal/extracthtml"
	"inspector/internal/logger"
	"inspector/internal/storage"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		src sourceFlags
		out outputFlags
		dir string
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run the rules once against a page, stdin or a directory of HTML files",
		Example: `  inspector extract --rules rules.json --url https://example.com/list
  cat page.html | inspector extract --rules rules.json --format csv
  inspector extract --template products --dir ./pages`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := out.validate(); err != nil {
				return err
			}
			rules, name, err := a.loadRules(ctx, &src)
			if err != nil {
				return err
			}

			if dir != "" {
				if src.url != "" || src.live {
					return usagef("--dir cannot be combined with --url or --live")
				}
				if out.format != "json" {
					return usagef("--dir only supports --format json")
				}
				n, err := extracthtml.StreamFromDir(a.stdout, dir, rules, out.options())
				if err != nil {
					return err
				}
				a.log.Info("directory extracted", logger.String("dir", dir), logger.Int("rows", n))
				return nil
			}

			page, release, err := a.openPage(ctx, &src)
			if err != nil {
				return err
			}
			defer release()

			snap, err := page.Snapshot(ctx)
			if err != nil {
				return err
			}
			a.log.Info("extracting", logger.String("rules", name), logger.Int("fields", len(rules)), logger.String("source", snap.URL()))

			res, err := extracthtml.Run(snap, rules, out.options())
			if err != nil {
				return err
			}
			rows := res.Rows
			if out.dedupe {
				rows = export.Dedupe(rows)
			}
			a.log.Info("extraction finished", logger.Int("rows", len(rows)))

			if err := a.writeRows(rows, out.format); err != nil {
				return err
			}
			run := storage.RunFromResult(res)
			run.Rows = rows
			return a.deliver(ctx, &out, run, storage.LogAuto, scrapeMessage(name, len(rules), len(rows)))
		},
	}
	src.register(cmd)
	out.register(cmd)
	cmd.Flags().StringVar(&dir, "dir", "", "Extract every .html file in this directory into one JSON array")
	return cmd
}

func scrapeMessage(name string, fields, rows int) string {
	return "scrape " + name + ": " + plural(fields, "field") + ", " + plural(rows, "row")
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
