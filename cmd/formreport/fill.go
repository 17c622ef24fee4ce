package main

import (
	"github.com/spf13/cobra"

	formreport "github.com/porticus-lab/go-form-report"
	"github.com/porticus-lab/go-form-report/internal/prompt"
)

func newFillCmd(a *app) *cobra.Command {
	var (
		format string
		target string
		output string
	)
	cmd := &cobra.Command{
		Use:   "fill <kind>",
		Short: "Fill a report form on the terminal",
		Long: `Ask for the fields of a report on the terminal, render the report and
export it. Invalid answers are shown and asked for again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.report(args[0])
			if err != nil {
				return err
			}
			p, cleanup, err := a.pipeline()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			filler := prompt.New()
			session := p.NewSession()
			if _, err := filler.Collect(ctx, session, report); err != nil {
				return err
			}

			var f formreport.Format
			if format != "" {
				f, err = formreport.ParseFormat(format)
			} else {
				f, err = filler.ChooseFormat(ctx, p.Formats())
			}
			if err != nil {
				return err
			}
			var t formreport.ExportTarget
			if target != "" {
				t, err = a.cfg.Target(target)
			} else {
				t, err = filler.ChooseTarget(ctx, a.cfg.ExportTargets())
			}
			if err != nil {
				return err
			}

			if _, err := session.Render(ctx, f); err != nil {
				return err
			}
			receipt, err := session.Export(ctx, t)
			if err != nil {
				return err
			}
			return saveReceipt(cmd, receipt, output)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Document format: pdf or xlsx (asked when empty)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "Export target name (asked when empty)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file for downloads (default: the report file name)")
	return cmd
}
