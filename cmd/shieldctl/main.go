// shieldctl is a small operator CLI against a running PromptShield service.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptshield-ai/promptshield/pkg/shieldclient"
)

var (
	serverURL string
	apiKey    string
)

var rootCmd = &cobra.Command{
	Use:   "shieldctl",
	Short: "PromptShield operator CLI",
	Long: `shieldctl talks to a running PromptShield service: classify prompts,
inspect attack statistics, list recent attacks, and find repeat offenders.`,
	SilenceUsage: true,
}

var checkCmd = &cobra.Command{
	Use:   "check <prompt>",
	Short: "Classify a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contextHint, _ := cmd.Flags().GetString("context")
		resp, err := newClient().Check(cmd.Context(), args[0], contextHint)
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Attack statistics for a trailing window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		days, _ := cmd.Flags().GetInt("days")
		stats, err := newClient().Stats(cmd.Context(), days)
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var attacksCmd = &cobra.Command{
	Use:   "attacks",
	Short: "List recent attack records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		attacks, err := newClient().RecentAttacks(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return printJSON(attacks)
	},
}

var offendersCmd = &cobra.Command{
	Use:   "offenders",
	Short: "List repeat-offender fingerprints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		minCount, _ := cmd.Flags().GetInt("min-count")
		days, _ := cmd.Flags().GetInt("days")
		offenders, err := newClient().RepeatOffenders(cmd.Context(), minCount, days)
		if err != nil {
			return err
		}
		return printJSON(offenders)
	},
}

func newClient() *shieldclient.Client {
	var opts []shieldclient.Option
	if apiKey != "" {
		opts = append(opts, shieldclient.WithAPIKey(apiKey))
	}
	return shieldclient.New(serverURL, opts...)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "http://localhost:8000", "PromptShield service URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("SHIELD_API_KEY"), "Shared secret for the service (or SHIELD_API_KEY)")

	checkCmd.Flags().String("context", "", "Optional context hint for the check")
	statsCmd.Flags().Int("days", 7, "Trailing window in days")
	attacksCmd.Flags().Int("limit", 100, "Maximum records to list")
	offendersCmd.Flags().Int("min-count", 3, "Minimum repeats per fingerprint")
	offendersCmd.Flags().Int("days", 7, "Trailing window in days")

	rootCmd.AddCommand(checkCmd, statsCmd, attacksCmd, offendersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
