package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/pkg/givingclient"
)

func quoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote [amount]",
		Short: "Show the fee and total for a gift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := domain.ParseMoney(args[0])
			if err != nil {
				return err
			}
			cover, _ := cmd.Flags().GetBool("cover-fees")
			remote, _ := cmd.Flags().GetBool("remote")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var breakdown domain.FeeBreakdown
			rule := cfg.FeeRule().String()
			if remote {
				q, err := givingclient.NewClient(serverURL(cmd, cfg), "").Quote(cmd.Context(), amount, cover)
				if err != nil {
					return err
				}
				breakdown, rule = q.FeeBreakdown, q.FeeRule
			} else {
				breakdown, err = cfg.FeeRule().Breakdown(amount, cover)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fee rule: %s\n", rule)
			printBreakdown(out, breakdown)
			return nil
		},
	}
	cmd.Flags().BoolP("cover-fees", "c", false, "Donor covers the processing fee")
	cmd.Flags().BoolP("remote", "r", false, "Ask the giving-service instead of computing locally")
	return cmd
}

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List giving categories and suggested amounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			types := domain.PaymentTypes()
			if remote, _ := cmd.Flags().GetBool("remote"); remote {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				types, err = givingclient.NewClient(serverURL(cmd, cfg), "").Categories(cmd.Context())
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, pt := range types {
				amounts := make([]string, 0, len(pt.SuggestedAmounts))
				for _, a := range pt.SuggestedAmounts {
					amounts = append(amounts, a.String())
				}
				fmt.Fprintf(out, "%-14s %-14s %s\n", pt.ID, pt.Name, strings.Join(amounts, "  "))
				if pt.MinAmount > 0 {
					fmt.Fprintf(out, "%-14s minimum %s\n", "", pt.MinAmount)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolP("remote", "r", false, "Fetch the registry from the giving-service")
	return cmd
}

func referenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reference",
		Short: "Generate a payment reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := domain.GenerateReference()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}
}
