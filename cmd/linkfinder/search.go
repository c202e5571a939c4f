package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/qepting91/linkfinder/internal/config"
	"github.com/qepting91/linkfinder/internal/pipeline"
)

const (
	titleWidth = 60
	linkWidth  = 70
)

func searchCmd() *cobra.Command {
	var (
		opts      pipeline.Options
		sources   string
		threshold float64
		bestOnly  bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the configured sources once and print the ranked results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(slog.Default())
			if err != nil {
				return err
			}
			defer a.close()

			if sources != "" {
				opts.Sources = config.SplitList(sources)
			}
			if cmd.Flags().Changed("threshold") {
				opts.Threshold = &threshold
			}
			resp, err := a.service.Search(cmd.Context(), strings.Join(args, " "), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			results := resp.Results
			if bestOnly {
				results = resp.Best
			}
			t := newTable(out)
			t.AppendHeader(table.Row{"#", "Rank", "Quality", "Source", "Title", "Shopping links"})
			for i, r := range results {
				var links []string
				for _, m := range r.ShoppingLinks {
					links = append(links, m.CanonicalID)
				}
				t.AppendRow(table.Row{i + 1, r.RankScore, r.QualityScore, r.Source, r.Title, strings.Join(links, "\n")})
			}
			t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d results (%s)", resp.Count, resp.Source), ""})
			t.Render()
			printWarning(out, resp.Warning, resp.Details)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&sources, "subreddits", "", "comma separated sources (default: configured sources)")
	f.StringVar(&opts.Sort, "sort", pipeline.DefaultSort, "relevance, top, new or comments")
	f.StringVar(&opts.Time, "t", pipeline.DefaultTime, "time window: hour, day, week, month, year or all")
	f.IntVar(&opts.Limit, "limit", pipeline.DefaultLimit, "posts fetched per source")
	f.StringVar(&opts.Type, "type", pipeline.TypeAll, "all, image, text or link")
	f.IntVar(&opts.MinScore, "min-score", 0, "minimum post score")
	f.Float64Var(&threshold, "threshold", pipeline.DefaultThreshold, "minimum quality score in [0,1]")
	f.IntVar(&opts.BestLimit, "best-limit", pipeline.DefaultBestLimit, "size of the best list")
	f.BoolVar(&bestOnly, "best", false, "print only the best results")
	return cmd
}

func extractCmd() *cobra.Command {
	var ref pipeline.Ref
	var query string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract and convert the shopping links of one post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(slog.Default())
			if err != nil {
				return err
			}
			defer a.close()

			resp, err := a.service.Extract(cmd.Context(), ref, query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s by u/%s in r/%s (%s)\n", resp.Post.Title, resp.Post.Author, resp.Post.Subreddit, resp.Source)
			t := newTable(out)
			t.AppendHeader(table.Row{"Platform", "Item", "Keywords", "Affiliate link"})
			for _, l := range resp.Links {
				t.AppendRow(table.Row{l.Platform, l.ItemID, strings.Join(l.Keywords, ", "), l.AffiliateURL})
			}
			t.AppendFooter(table.Row{"", "", "domains", resp.Stats.Domains})
			t.Render()
			printWarning(out, resp.Warning, resp.Details)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&ref.Permalink, "permalink", "", "post permalink")
	f.StringVar(&ref.ID, "id", "", "post id")
	f.StringVar(&ref.URL, "url", "", "full post URL")
	f.StringVar(&query, "q", "", "only keep links whose context mentions this query")
	cmd.MarkFlagsOneRequired("permalink", "id", "url")
	return cmd
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the post cache from every configured source once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(slog.Default())
			if err != nil {
				return err
			}
			defer a.close()

			r := a.refresher()
			n := r.RefreshAll(cmd.Context())
			if n == 0 && len(r.Sources) > 0 {
				return fmt.Errorf("no source refreshed out of %d", len(r.Sources))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d/%d sources into %s\n", n, len(r.Sources), a.cfg.CacheFile)
			return nil
		},
	}
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.Style().Options.SeparateRows = true
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Title", WidthMax: titleWidth},
		{Name: "Affiliate link", WidthMax: linkWidth},
		{Name: "Rank", Align: text.AlignRight},
		{Name: "Quality", Align: text.AlignRight},
	})
	return t
}

func printWarning(out io.Writer, warning, details string) {
	if warning == "" {
		return
	}
	fmt.Fprintf(out, "warning: %s\n", warning)
	if details != "" {
		fmt.Fprintf(out, "details: %s\n", details)
	}
}
