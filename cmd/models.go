package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/catalog"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/credential"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/translator"
)

const apiKeyEnv = "SHREDDER_API_KEY"

// apiKeyFlag resolves --api-key, falling back to SHREDDER_API_KEY. An empty
// result selects the operator credential.
func apiKeyFlag(flagValue string) credential.Credential {
	if v := strings.TrimSpace(flagValue); v != "" {
		return credential.Credential(v)
	}
	return credential.Credential(strings.TrimSpace(os.Getenv(apiKeyEnv)))
}

func newModelsCmd(g *globals) *cobra.Command {
	var (
		apiKey  string
		asJSON  bool
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List, rank and recommend the models visible to a credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, g.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			snap, err := a.router.Catalog(ctx, apiKeyFlag(apiKey), refresh)
			if err != nil {
				return err
			}
			report := a.ranker.Report(snap.Models)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(translator.FromSnapshot(snap, report, time.Now()))
			}

			if snap.Fallback {
				printf(cmd, "model listing failed; showing the static fallback catalog\n\n")
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = tw.Write([]byte("MODEL\tSCORE\tCATEGORY\tCOST\tFEATURES\n"))
			for _, r := range a.ranker.Rank(snap.Models) {
				_, _ = tw.Write([]byte(strings.Join([]string{
					r.ID,
					formatScore(r.Score),
					string(r.Category),
					string(r.CostTier),
					strings.Join(r.Features, ","),
				}, "\t") + "\n"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			printf(cmd, "\nRecommendations:\n")
			for _, useCase := range catalog.UseCases() {
				if id, ok := report.Recommendations.Get(useCase); ok {
					printf(cmd, "  %-18s %s\n", useCase, id)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "credential to list with (default $"+apiKeyEnv+", then the operator credential)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog analysis as JSON")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the catalog cache")
	return cmd
}

func newCheckKeyCmd(g *globals) *cobra.Command {
	var apiKey string

	cmd := &cobra.Command{
		Use:   "check-key",
		Short: "Check that a credential is accepted by its provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := apiKeyFlag(apiKey)
			if key == "" {
				return errors.New("check-key requires --api-key or $" + apiKeyEnv)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, g.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.resolver.TestCredential(ctx, key) {
				printf(cmd, "%s: rejected\n", key)
				return errors.New("credential check failed")
			}
			printf(cmd, "%s: ok\n", key)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "credential to check (default $"+apiKeyEnv+")")
	return cmd
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
