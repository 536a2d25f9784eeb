package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/catalog"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/classifier"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/selector"
)

type classifyOutput struct {
	Profile   classifier.Profile `json:"profile"`
	UseCase   string             `json:"useCase"`
	Selection selector.Result    `json:"selection"`
}

func newClassifyCmd(g *globals) *cobra.Command {
	var (
		models      []string
		instruction string
		explicit    string
	)

	cmd := &cobra.Command{
		Use:   "classify <message>",
		Short: "Classify a message and show the model it would be routed to, without network access",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			profile := classifier.New().Classify(message, nil, instruction)

			ids := models
			if len(ids) == 0 {
				ids = []string{g.cfg.Chat.DefaultModel}
			}
			sel := selector.New(catalog.NewRanker()).Select(profile, ids, explicit, false)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(classifyOutput{
				Profile:   profile,
				UseCase:   selector.UseCaseFor(profile),
				Selection: sel,
			})
		},
	}

	cmd.Flags().StringSliceVar(&models, "catalog", nil, "comma-separated model ids to select from (default chat.default_model)")
	cmd.Flags().StringVar(&instruction, "system", "", "instruction text classified alongside the message")
	cmd.Flags().StringVar(&explicit, "model", "", "explicit model override")
	return cmd
}
