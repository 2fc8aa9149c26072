package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/rating"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record or inspect operator corrections",
}

var feedbackAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a correction to the feedback ledger",
	RunE:  runFeedbackAdd,
}

var feedbackListCmd = &cobra.Command{
	Use:   "list <entity-id>",
	Short: "List every correction recorded for an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeedbackList,
}

var (
	feedbackEntity string
	feedbackRule   string
	feedbackStatus string
	feedbackNote   string
)

func init() {
	feedbackAddCmd.Flags().StringVarP(&feedbackEntity, "entity", "e", "", "Product ID the rule applies to (required)")
	feedbackAddCmd.Flags().StringVarP(&feedbackRule, "rule", "r", "", "Case-insensitive text pattern, or * for every snippet (required)")
	feedbackAddCmd.Flags().StringVarP(&feedbackStatus, "status", "s", "", "ignore_if_missed, downgrade or confirm (required)")
	feedbackAddCmd.Flags().StringVarP(&feedbackNote, "note", "n", "", "Free-text note")
	_ = feedbackAddCmd.MarkFlagRequired("entity")
	_ = feedbackAddCmd.MarkFlagRequired("rule")
	_ = feedbackAddCmd.MarkFlagRequired("status")

	feedbackCmd.AddCommand(feedbackAddCmd, feedbackListCmd)
	rootCmd.AddCommand(feedbackCmd)
}

func runFeedbackAdd(cmd *cobra.Command, _ []string) error {
	in := domain.FeedbackInput{
		EntityID: feedbackEntity,
		Rule:     feedbackRule,
		Status:   domain.FeedbackStatus(feedbackStatus),
		Note:     feedbackNote,
	}
	if err := in.Validate(); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	application, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	rule, err := application.Ledger().Append(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}
	return printJSON(cmd, rule)
}

func runFeedbackList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	application, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	rules, err := application.Ledger().ListByEntity(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("list feedback: %w", err)
	}
	if rules == nil {
		rules = []domain.FeedbackRule{}
	}
	return printJSON(cmd, map[string]any{
		"entity":    args[0],
		"rules":     rules,
		"effective": rating.EffectiveRules(rules),
	})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
