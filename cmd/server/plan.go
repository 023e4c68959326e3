package main

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"city-planner/backend/internal/workflow"
	"city-planner/backend/pkg/models"
)

// cliIdentity is the rate limit identity of command line runs.
const cliIdentity = "cli:local"

var (
	planReq models.PlanRequest
	tripReq models.TripRequest
	style   string
	mode    string
	prices  string
)

var planCmd = &cobra.Command{
	Use:   "plan <city>",
	Short: "Plan a city visit and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		req := planReq
		req.City = args[0]
		req.Style = models.TravelStyle(style)
		req.Mode = models.PlanMode(mode)

		resp, err := a.planner.Plan(cmd.Context(), cliIdentity, req)
		return printPartial(cmd.OutOrStdout(), resp, err)
	},
}

var tripCmd = &cobra.Command{
	Use:   "trip <destination>...",
	Short: "Plan a multi-destination trip and print it as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		req := tripReq
		req.Destinations = args
		req.PriceRange = models.TravelStyle(prices)

		plan, err := a.planner.PlanTrip(cmd.Context(), cliIdentity, req)
		return printPartial(cmd.OutOrStdout(), plan, err)
	},
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&planReq.Country, "country", "", "Country of the city")
	f.StringVar(&mode, "mode", "", "Planning mode: quick or full (default picks from the inputs)")
	f.IntVar(&planReq.Duration, "duration", 0, "Trip length in days")
	f.IntVar(&planReq.Budget, "budget", 0, "Total budget in USD")
	f.StringVar(&style, "style", "", "Travel style: budget, mid-range or luxury")
	f.StringSliceVar(&planReq.Interests, "interests", nil, "Comma separated interests")

	f = tripCmd.Flags()
	f.StringVar(&tripReq.Origin, "origin", "", "Departure city")
	f.StringVar(&tripReq.PassportCountry, "passport", "", "Passport country for visa checks")
	f.IntVar(&tripReq.Duration, "duration", 0, "Trip length in days")
	f.IntVar(&tripReq.Budget, "budget", 0, "Total budget in USD")
	f.IntVar(&tripReq.Travelers, "travelers", 1, "Number of travelers")
	f.StringVar(&tripReq.CheckIn, "check-in", "", "Check-in date, YYYY-MM-DD")
	f.StringVar(&tripReq.CheckOut, "check-out", "", "Check-out date, YYYY-MM-DD")
	f.StringSliceVar(&tripReq.Interests, "interests", nil, "Comma separated interests")
	f.StringSliceVar(&tripReq.Activities, "activities", nil, "Comma separated activities")
	f.StringVar(&prices, "price-range", "", "Hotel price range: budget, mid-range or luxury")
}

// printPartial writes v and returns err. A failed run still prints the
// partial result it produced.
func printPartial(w io.Writer, v any, err error) error {
	var runErr *workflow.RunError
	if err != nil && !errors.As(err, &runErr) {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(v); encErr != nil {
		return encErr
	}
	return err
}
