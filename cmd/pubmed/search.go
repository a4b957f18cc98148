package main

import (
	"github.com/spf13/cobra"

	"github.com/Sternrassler/pubmed-client/pkg/client"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search PubMed and fetch the matching articles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxResults, _ := cmd.Flags().GetInt("max")
		minDate, _ := cmd.Flags().GetString("from")
		maxDate, _ := cmd.Flags().GetString("to")
		csvFile, _ := cmd.Flags().GetString("csv")
		jsonFile, _ := cmd.Flags().GetString("json")

		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		var opts *client.SearchOptions
		if minDate != "" || maxDate != "" {
			opts = &client.SearchOptions{MinDate: minDate, MaxDate: maxDate}
		}

		articles, err := c.SearchAndFetch(cmd.Context(), args[0], maxResults, opts)
		if err != nil {
			return err
		}

		return emit(articles, csvFile, jsonFile)
	},
}

func init() {
	searchCmd.Flags().IntP("max", "m", 10, "maximum results")
	searchCmd.Flags().String("from", "", "publication date range start (YYYY/MM/DD)")
	searchCmd.Flags().String("to", "", "publication date range end (YYYY/MM/DD)")
	searchCmd.Flags().String("csv", "", "save results to a CSV file")
	searchCmd.Flags().String("json", "", "save results to a JSON file")

	rootCmd.AddCommand(searchCmd)
}
