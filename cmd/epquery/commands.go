package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alaa-alshamy/ElasticPress/internal/app"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/facet"
)

func compileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Compile a JSON content query into a search document",
		Long: "Reads query arguments as JSON from file, or stdin when no file is given,\n" +
			"and prints the compiled search document.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, _ := cmd.Flags().GetStringArray("filter")
			input, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			q, err := query.Decode(input)
			if err != nil {
				return fmt.Errorf("decode query: %w", err)
			}
			return withApp(cmd, func(ctx context.Context, _ *session, a *app.App) error {
				sel, err := parseFilters(filters, a.Facets.Settings().FilterPrefix)
				if err != nil {
					return err
				}
				doc, err := a.Query.Compile(ctx, q, sel)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc)
			})
		},
	}
	cmd.Flags().StringArray("filter", nil, "facet selection as field=v1,v2 (repeatable)")
	return cmd
}

func valuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "values <field>",
		Short: "List the cached distinct values of a facet field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, _ *session, a *app.App) error {
				values, err := a.Facets.Values(ctx, args[0])
				if err != nil {
					return err
				}
				for _, v := range values {
					fmt.Fprintln(cmd.OutOrStdout(), v)
				}
				return nil
			})
		},
	}
}

func invalidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate [field...]",
		Short: "Drop cached facet values",
		Long: "Without fields every known facet field is dropped. With --all every key\n" +
			"under the facet cache prefix is removed, including fields no longer configured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all && len(args) > 0 {
				return fmt.Errorf("--all cannot be combined with field names")
			}
			return withApp(cmd, func(ctx context.Context, _ *session, a *app.App) error {
				switch {
				case all:
					a.Facets.Purge(ctx)
				case len(args) == 0:
					a.Facets.InvalidateAll(ctx)
				default:
					a.Facets.Invalidate(ctx, args...)
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("all", false, "remove every key under the facet cache prefix")
	return cmd
}

func indexVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index-version",
		Short: "Print the mapping version of the content index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			refresh, _ := cmd.Flags().GetBool("refresh")
			return withApp(cmd, func(ctx context.Context, rt *session, a *app.App) error {
				if refresh {
					if err := a.Versions.Invalidate(ctx); err != nil {
						return err
					}
				}
				v, err := a.Versions.Version(ctx, rt.cfg.Search.Index)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
	cmd.Flags().Bool("refresh", false, "drop the cached version before resolving")
	return cmd
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read query file: %w", err)
	}
	return data, nil
}

// parseFilters turns field=v1,v2 flags into a selection.
func parseFilters(filters []string, prefix string) (facet.Selection, error) {
	if prefix == "" {
		prefix = facet.DefaultFilterPrefix
	}
	q := url.Values{}
	for _, f := range filters {
		field, values, ok := strings.Cut(f, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid filter %q: want field=v1,v2", f)
		}
		q.Add(prefix+field, values)
	}
	return facet.ParseSelection(q, prefix), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
