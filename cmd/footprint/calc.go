package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/footprint/internal/emissions"
)

type calcResult struct {
	Input          map[string]any           `json:"input"`
	TotalEmission  float64                  `json:"total_emission_kgCO2"`
	Recommendation string                   `json:"recommendation"`
	Breakdown      []emissions.Contribution `json:"breakdown"`
}

// newCalcCmd computes a footprint offline without touching any store.
func newCalcCmd() *cobra.Command {
	var (
		factorsFile string
		asJSON      bool
		quantities  = map[string]*string{}
	)

	cmd := &cobra.Command{
		Use:     "calc",
		Short:   "Calculate a footprint from flags without recording it",
		Example: "  footprint calc --car 200 --flight 10",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			factors, err := emissions.LoadFactors(factorsFile)
			if err != nil {
				return err
			}

			input := make(map[string]any, len(quantities))
			for category, value := range quantities {
				if cmd.Flags().Changed(category) {
					input[category] = *value
				}
			}

			total := factors.Calculate(input)
			result := calcResult{
				Input:          input,
				TotalEmission:  total,
				Recommendation: emissions.Recommend(total),
				Breakdown:      factors.Breakdown(input),
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tQUANTITY\tFACTOR\tKG CO2")
			for _, c := range result.Breakdown {
				fmt.Fprintf(tw, "%s\t%g\t%g\t%.2f\n", c.Category, c.Quantity, c.Factor, c.KgCO2)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nTotal: %.2f kg CO2\n%s\n", result.TotalEmission, result.Recommendation)
			return nil
		},
	}

	for _, category := range emissions.Categories {
		quantities[category] = cmd.Flags().String(category, "", fmt.Sprintf("%s quantity", category))
	}
	cmd.Flags().StringVar(&factorsFile, "factors", "", "emission factor file (.json, .yaml); built-in defaults when empty")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
