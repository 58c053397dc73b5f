package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// listPayload mirrors the API's paginated list envelope.
type listPayload struct {
	Items         []map[string]any `json:"items"`
	Total         int64            `json:"total"`
	NextPageToken string           `json:"nextPageToken"`
}

// pageFlags carries the pagination flags shared by list commands.
type pageFlags struct {
	maxResults int
	pageToken  string
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.maxResults, "max-results", 0, "maximum items per page")
	cmd.Flags().StringVar(&p.pageToken, "page-token", "", "continuation token from a previous page")
}

func (p *pageFlags) query() url.Values {
	q := url.Values{}
	if p.maxResults > 0 {
		q.Set("maxResults", fmt.Sprint(p.maxResults))
	}
	if p.pageToken != "" {
		q.Set("pageToken", p.pageToken)
	}
	return q
}

// printList renders a paginated result either as raw JSON or as a table
// projected onto the given fields.
func printList(cmd *cobra.Command, list listPayload, fields []string) error {
	out := cmd.OutOrStdout()
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(out, list)
	}
	PrintTable(out, fields, ExtractRows(list.Items, fields))
	if list.NextPageToken != "" {
		fmt.Fprintf(out, "\nMore results: --page-token %s\n", list.NextPageToken)
	}
	return nil
}

// printObject renders a single API object as JSON or a detail listing.
func printObject(cmd *cobra.Command, obj map[string]any) error {
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(cmd.OutOrStdout(), obj)
	}
	PrintDetail(cmd.OutOrStdout(), obj)
	return nil
}
