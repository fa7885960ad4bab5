package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"inspector/internal/extracthtml"
)

func newSelectCmd(a *app) *cobra.Command {
	var (
		src      sourceFlags
		textOnly bool
		capture  bool
		asRules  bool
		outer    bool
	)
	cmd := &cobra.Command{
		Use:   "select <selector>",
		Short: "Debug a selector: print each match with its CSS path and XPath",
		Long: `Select prints every match of a CSS or XPath selector. With --capture it
prints the full element records instead (inferred name, type, value, paths);
with --as-rules it prints a rule file with one rule per match, ready to edit
and save as a template.`,
		Example: `  cat page.html | inspector select "div#firmInfo"
  inspector select "//h2[@class='title']" --url https://example.com --text
  cat page.html | inspector select "div.card img" --as-rules > rules.json`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if capture && asRules {
				return usagef("use either --capture or --as-rules, not both")
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
			if !capture && !asRules {
				return extracthtml.DebugPrintSelector(a.stdout, snap, args[0], textOnly)
			}

			els := snap.QueryAll(args[0])
			captures := make([]extracthtml.Capture, 0, len(els))
			for _, el := range els {
				captures = append(captures, extracthtml.CaptureElement(snap, el, extracthtml.CaptureOptions{IncludeOuter: outer}))
			}

			enc := json.NewEncoder(a.stdout)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			if capture {
				return enc.Encode(captures)
			}
			rf := extracthtml.RuleFile{Rules: make([]extracthtml.FieldRule, 0, len(captures))}
			for _, c := range captures {
				rf.Rules = append(rf.Rules, c.ToRule())
			}
			return enc.Encode(rf)
		},
	}
	f := cmd.Flags()
	f.StringVar(&src.url, "url", "", "Fetch the page from URL instead of stdin")
	f.BoolVar(&src.live, "live", false, "Load --url in a Chrome tab")
	f.BoolVar(&textOnly, "text", false, "Print rendered text instead of outer HTML")
	f.BoolVar(&capture, "capture", false, "Print each match as a JSON element record")
	f.BoolVar(&asRules, "as-rules", false, "Print a rule file with one rule per match")
	f.BoolVar(&outer, "outer", false, "Include outer HTML in --capture records")
	return cmd
}
