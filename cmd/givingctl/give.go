package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/donationform"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/pkg/givingclient"
)

type donationSubmitter interface {
	SubmitDonation(ctx context.Context, intent domain.DonationIntent) (*givingclient.SubmitResponse, error)
}

func giveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "give [category]",
		Short: "Walk through a gift step by step and start the payment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := domain.CategoryTithe
			if len(args) == 1 {
				category = args[0]
			}
			if _, err := domain.LookupPaymentType(category); err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			w := &wizard{
				in:     bufio.NewReader(cmd.InOrStdin()),
				out:    cmd.OutOrStdout(),
				rule:   cfg.FeeRule(),
				client: givingclient.NewClient(serverURL(cmd, cfg), ""),
			}
			state, err := w.run(cmd.Context(), category)
			if err != nil {
				return err
			}
			if state.Step != donationform.Success {
				return errors.New("gift not completed")
			}
			return nil
		},
	}
	return cmd
}

type wizard struct {
	in     *bufio.Reader
	out    io.Writer
	rule   domain.FeeRule
	client donationSubmitter
}

// run drives the form until the donor either succeeds or declines to retry.
func (w *wizard) run(ctx context.Context, category string) (donationform.State, error) {
	state := donationform.New(category)
	for {
		var err error
		switch state.Step {
		case donationform.AmountStep:
			state, err = w.amountStep(state)
		case donationform.DonorInfoStep:
			state, err = w.donorStep(state)
		case donationform.PaymentStep:
			var done bool
			state, done, err = w.paymentStep(ctx, state)
			if err == nil && done {
				return state, nil
			}
		case donationform.Success:
			return state, nil
		default:
			return state, fmt.Errorf("unexpected step %q", state.Step)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return state, err
			}
			fmt.Fprintf(w.out, "  ! %v\n", err)
		}
	}
}

func (w *wizard) amountStep(s donationform.State) (donationform.State, error) {
	pt, _ := domain.GetPaymentType(s.Category)
	fmt.Fprintf(w.out, "\n%s: %s\n", pt.Name, pt.Description)
	for i, a := range pt.SuggestedAmounts {
		fmt.Fprintf(w.out, "  [%d] %s\n", i+1, a)
	}
	raw, err := w.prompt("Choose an amount or type your own")
	if err != nil {
		return s, err
	}

	var ev donationform.Event
	if i, convErr := strconv.Atoi(raw); convErr == nil && i >= 1 && i <= len(pt.SuggestedAmounts) {
		ev = donationform.SelectPreset{Amount: pt.SuggestedAmounts[i-1]}
	} else {
		amount, err := domain.ParseMoney(raw)
		if err != nil {
			return s, err
		}
		ev = donationform.EnterCustomAmount{Amount: amount}
	}
	if s, err = donationform.Transition(s, ev); err != nil {
		return s, err
	}

	freq, err := w.prompt(fmt.Sprintf("Frequency %v [%s]", domain.Frequencies, s.Frequency))
	if err != nil {
		return s, err
	}
	if freq != "" {
		if s, err = donationform.Transition(s, donationform.ChooseFrequency{Frequency: domain.Frequency(freq)}); err != nil {
			return s, err
		}
	}

	cover, err := w.confirm("Cover the processing fee?")
	if err != nil {
		return s, err
	}
	if cover != s.CoverFees {
		s, _ = donationform.Transition(s, donationform.ToggleCoverFees{})
	}
	printBreakdown(w.out, s.Breakdown(w.rule))
	return donationform.Transition(s, donationform.Next{})
}

func (w *wizard) donorStep(s donationform.State) (donationform.State, error) {
	anonymous, err := w.confirm("Give anonymously?")
	if err != nil {
		return s, err
	}
	s, _ = donationform.Transition(s, donationform.SetAnonymous{Anonymous: anonymous})

	if !anonymous {
		var d domain.DonorInfo
		fields := []struct {
			label string
			dst   *string
		}{
			{"First name", &d.FirstName},
			{"Last name", &d.LastName},
			{"Email", &d.Email},
			{"Phone", &d.Phone},
		}
		for _, f := range fields {
			if *f.dst, err = w.prompt(f.label); err != nil {
				return s, err
			}
		}
		s, _ = donationform.Transition(s, donationform.UpdateDonor{Donor: d})
	}

	if pt, _ := domain.GetPaymentType(s.Category); pt.RequiresDetails {
		details, err := w.prompt("Tell us what this gift is for")
		if err != nil {
			return s, err
		}
		s, _ = donationform.Transition(s, donationform.SetDetails{Details: details})
	}
	return donationform.Transition(s, donationform.Next{})
}

// paymentStep submits the gift. done is true once the donor has either
// succeeded or chosen not to retry.
func (w *wizard) paymentStep(ctx context.Context, s donationform.State) (donationform.State, bool, error) {
	b := s.Breakdown(w.rule)
	fmt.Fprintf(w.out, "\nYou are giving %s (%s, %s).\n", b.Total, s.Category, s.Frequency)
	if s.Error != "" {
		ok, err := w.confirm(s.Error + " Try again?")
		if err != nil || !ok {
			return s, true, err
		}
	} else {
		ok, err := w.confirm("Proceed to payment?")
		if err != nil {
			return s, false, err
		}
		if !ok {
			next, err := donationform.Transition(s, donationform.Previous{})
			return next, false, err
		}
	}

	s, err := donationform.Transition(s, donationform.Submit{})
	if err != nil {
		return s, false, err
	}
	resp, err := w.client.SubmitDonation(ctx, s.Intent())
	if err != nil {
		failed := donationform.SubmissionFailed{}
		var apiErr *givingclient.APIError
		if errors.As(err, &apiErr) {
			failed.Message, failed.Reference = apiErr.Message, apiErr.Reference
		}
		s, _ = donationform.Transition(s, failed)
		return s, false, nil
	}

	s, _ = donationform.Transition(s, donationform.SubmissionSucceeded{Result: donationform.Result{
		TransactionID: resp.TransactionID,
		Reference:     resp.Reference,
		PaymentURL:    resp.PaymentURL,
		IsTestMode:    resp.IsTestMode,
		Breakdown:     domain.FeeBreakdown{Amount: resp.Amount, Fees: resp.Fees, Total: resp.Total},
	}})
	fmt.Fprintf(w.out, "\nThank you! Reference %s\n", resp.Reference)
	if resp.IsTestMode {
		fmt.Fprintln(w.out, "(test mode: no money will be collected)")
	}
	if resp.PaymentURL != "" {
		fmt.Fprintf(w.out, "Complete your payment at:\n  %s\n", resp.PaymentURL)
	}
	return s, true, nil
}

func (w *wizard) prompt(label string) (string, error) {
	fmt.Fprintf(w.out, "%s: ", label)
	line, err := w.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", io.EOF
	}
	return strings.TrimSpace(line), nil
}

func (w *wizard) confirm(label string) (bool, error) {
	answer, err := w.prompt(label + " [y/N]")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func printBreakdown(out io.Writer, b domain.FeeBreakdown) {
	fmt.Fprintf(out, "  Gift:  %s\n", b.Amount)
	fmt.Fprintf(out, "  Fees:  %s\n", b.Fees)
	fmt.Fprintf(out, "  Total: %s\n", b.Total)
}
