package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	cmdutils "github.com/pulseras/pulseras-go/cmd"
	"github.com/pulseras/pulseras-go/libs/logging"
	"github.com/pulseras/pulseras-go/services/checkout/pricing"
	"github.com/pulseras/pulseras-go/services/rates"
)

var (
	ratesCmd = &cobra.Command{
		Use:   "rates",
		Short: "inspect and refresh the exchange rate snapshot",
	}

	fetchCmd = &cobra.Command{
		Use:   "fetch",
		Short: "fetch both rates from the provider and print them",
		Run:   cmdutils.Perform("fetch rates", Fetch),
	}

	refreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "fetch both rates and store them as the shared snapshot",
		Run:   cmdutils.Perform("refresh rates", Refresh),
	}
)

func init() {
	ratesCmd.AddCommand(fetchCmd, refreshCmd)
	cmdutils.RootCmd.AddCommand(ratesCmd)
}

type fetchOutput struct {
	rates.ExchangeRates
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
}

// Fetch prints a fresh snapshot together with the discount it implies.
func Fetch(command *cobra.Command, args []string) error {
	ctx := cmdutils.WithRatesConfig(command.Context())

	_, s, err := rates.InitService(ctx)
	if err != nil {
		return err
	}

	rts := s.Fetch(ctx)

	out, err := json.MarshalIndent(fetchOutput{
		ExchangeRates:      rts,
		DiscountPercentage: pricing.DiscountPercentage(rts).Round(1),
	}, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))

	return nil
}

// Refresh stores a fresh snapshot, for deployments scheduling refreshes outside the server.
func Refresh(command *cobra.Command, args []string) error {
	ctx := cmdutils.WithRatesConfig(command.Context())
	logger := logging.Logger(ctx, "rates.Refresh")

	_, s, err := rates.InitService(ctx)
	if err != nil {
		return err
	}

	if _, err := s.Refresh(ctx); err != nil {
		return err
	}

	logger.Info().Msg("rate snapshot refreshed")

	return nil
}
