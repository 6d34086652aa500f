package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/ledger-guest/domain/entities"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [request-json]",
	Short: "Route a JSON request; reads stdin when no argument is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var request string
		if len(args) == 1 {
			request = args[0]
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			request = string(data)
		}

		resp, err := guest.DispatchRaw(cmd.Context(), request)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp)
		return nil
	},
}

var creditCmd = &cobra.Command{
	Use:   "credit <amount> <account>",
	Short: "Print the balance query for a credit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := guest.ExecuteCreditLeg(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), query)
		return nil
	},
}

var resultFile string

var applyCmd = &cobra.Command{
	Use:   "apply <amount> [result-json]",
	Short: "Apply a credit to the balance in a query result",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result string
		switch {
		case len(args) == 2:
			result = args[1]
		case resultFile != "":
			data, err := os.ReadFile(resultFile)
			if err != nil {
				return err
			}
			result = string(data)
		default:
			return fmt.Errorf("a query result is required, as an argument or with --result")
		}

		summary, err := guest.ApplyCreditResult(cmd.Context(), result, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), summary)
		return nil
	},
}

var debitCmd = &cobra.Command{
	Use:   "debit <amount> <account>",
	Short: "Describe a debit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, err := guest.ExecuteDebitLeg(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), description)
		return nil
	},
}

var describeOutput string

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the guest manifest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := guest.Describe(cmd.Context())
		if err != nil {
			return err
		}
		return writeManifest(cmd.OutOrStdout(), m, describeOutput)
	},
}

// writeManifest prints m as indented JSON or as YAML.
func writeManifest(w io.Writer, m entities.Manifest, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case "yaml":
		// Round-trip through JSON so the YAML keys follow the json tags.
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

func init() {
	describeCmd.Flags().StringVarP(
		&describeOutput,
		"output",
		"o",
		"json",
		"manifest format (json, yaml)",
	)

	applyCmd.Flags().StringVar(
		&resultFile,
		"result",
		"",
		"file holding the query result JSON",
	)
}
