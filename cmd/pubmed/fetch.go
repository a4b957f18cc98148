package main

import (
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <pmid>...",
	Short: "Fetch articles by PMID",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		csvFile, _ := cmd.Flags().GetString("csv")
		jsonFile, _ := cmd.Flags().GetString("json")

		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		articles, err := c.Fetch(cmd.Context(), args)
		if err != nil {
			return err
		}

		return emit(articles, csvFile, jsonFile)
	},
}

func init() {
	fetchCmd.Flags().String("csv", "", "save results to a CSV file")
	fetchCmd.Flags().String("json", "", "save results to a JSON file")

	rootCmd.AddCommand(fetchCmd)
}
