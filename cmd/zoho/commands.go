package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/zoho-client/pkg/logging"
	"github.com/Sternrassler/zoho-client/pkg/zoho"
	"github.com/spf13/cobra"
)

func newTokenCommand(a *app) *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token",
		Long: `Obtain a valid access token, refreshing it when it is about to expire.

Use --show to print only the raw token, e.g. for
  curl -H "Authorization: Zoho-oauthtoken $(zoho token --show)" ...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, err := a.connect()
			if err != nil {
				return err
			}

			token, err := suite.Tokens.GetValidAccessToken(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to obtain access token: %w", err)
			}

			if show {
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			}

			info := map[string]string{"access_token": logging.MaskToken(token)}
			if suite.Provider != nil {
				tok := suite.Provider.Token()
				info["expires_at"] = tok.ExpiresAt.Format(time.RFC3339)
				info["expires_in"] = time.Until(tok.ExpiresAt).Round(time.Second).String()
				if tok.APIDomain != "" {
					info["api_domain"] = tok.APIDomain
				}
			}
			return renderProperties(cmd.OutOrStdout(), a.output, info)
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "print only the unmasked token")

	return cmd
}

func newGetCommand(a *app) *cobra.Command {
	var (
		params   []string
		metadata bool
	)

	cmd := &cobra.Command{
		Use:   "get PRODUCT PATH",
		Short: "Fetch a single resource",
		Example: `  zoho get crm /Leads/4876876000000333001
  zoho get books /invoices/982000000567114 --param print=false
  zoho get crm /settings/fields --param module=Leads --metadata`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.productClient(args[0])
			if err != nil {
				return err
			}

			q, err := parseParams(params)
			if err != nil {
				return err
			}

			get := c.Get
			if metadata {
				get = c.Metadata
			}
			resp, err := get(cmd.Context(), args[1], q)
			if err != nil {
				return err
			}
			return renderBody(cmd.OutOrStdout(), a.output, resp.Body)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query parameter key=value (repeatable)")
	cmd.Flags().BoolVar(&metadata, "metadata", false, "serve from the metadata cache when Redis is configured")

	return cmd
}

func newListCommand(a *app) *cobra.Command {
	var (
		opts    zoho.ListOptions
		params  []string
		columns []string
	)

	cmd := &cobra.Command{
		Use:   "list PRODUCT PATH",
		Short: "List records across pages",
		Long: `List records of a collection, following pages until the API runs out of
records, --max-records is reached or the request ceiling is hit.`,
		Example: `  zoho list crm /Leads --fields Last_Name,Email --max-records 500
  zoho list books /invoices --param status=overdue -o yaml
  zoho list desk /tickets --columns id,subject,status`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.productClient(args[0])
			if err != nil {
				return err
			}

			if opts.Extra, err = parseParams(params); err != nil {
				return err
			}

			res, err := c.List(cmd.Context(), args[1], opts)
			if err != nil {
				if res != nil && len(res.Data) > 0 {
					a.logger.Warn().Int("records", len(res.Data)).Msg("Listing stopped early, showing partial result")
					_ = renderRecords(cmd.OutOrStdout(), a.output, res.Data, columns)
				}
				return fmt.Errorf("failed to list %s: %w", args[1], err)
			}

			if err := renderRecords(cmd.OutOrStdout(), a.output, res.Data, columns); err != nil {
				return err
			}

			if res.HasMore {
				a.logger.Info().
					Int("records", res.TotalRecords).
					Bool("safety_limit", res.SafetyLimitReached).
					Msg("More records available, raise --max-records or use --start")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "records per page (default from config)")
	cmd.Flags().IntVar(&opts.MaxRecords, "max-records", 0, "stop after this many records (default from config)")
	cmd.Flags().IntVar(&opts.StartOffset, "start", 0, "zero-based offset of the first record")
	cmd.Flags().StringVar(&opts.PageToken, "page-token", "", "continue from a page token")
	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "fields to return")
	cmd.Flags().StringVar(&opts.SortBy, "sort-by", "", "sort field")
	cmd.Flags().StringVar(&opts.SortOrder, "sort-order", "", "sort order (asc, desc)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query parameter key=value (repeatable)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "table columns (default: keys of the first record)")

	return cmd
}

// parseParams turns key=value arguments into query values.
func parseParams(params []string) (url.Values, error) {
	if len(params) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, p := range params {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", p)
		}
		q.Add(key, value)
	}
	return q, nil
}
