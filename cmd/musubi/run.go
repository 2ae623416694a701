package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/harunnryd/musubi/cmd/musubi/runtime"
	"github.com/harunnryd/musubi/internal/ingress"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [text]",
	Short: "Process one input event through the pipeline",
	Long: `Run one assistant turn: plan the input, execute the gated tool and
memory steps, and print the resulting response.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		personID, _ := cmd.Flags().GetString("person")
		sessionID, _ := cmd.Flags().GetString("session")
		modality, _ := cmd.Flags().GetString("modality")
		asJSON, _ := cmd.Flags().GetBool("json")

		m := ingress.ModalityText
		if modality == string(ingress.ModalitySpeech) {
			m = ingress.ModalitySpeech
		}
		if sessionID == "" {
			sessionID = ulid.Make().String()
		}

		components, err := runtime.Build(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize pipeline: %w", err)
		}
		defer components.Stop()

		evt := ingress.NewInputEvent("cli", m, text, personID, sessionID)
		res, runErr := components.Runner.Run(context.Background(), evt)

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
		} else if res.ResponseText != "" {
			fmt.Println(res.ResponseText)
		}

		if runErr != nil {
			return fmt.Errorf("turn failed: %w", runErr)
		}
		if res.TracePath != "" {
			fmt.Fprintf(os.Stderr, "trace: %s\n", res.TracePath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("person", "p", "", "person ID the turn belongs to")
	runCmd.Flags().StringP("session", "s", "", "session ID (generated when empty)")
	runCmd.Flags().String("modality", string(ingress.ModalityText), "input modality (text, speech)")
	runCmd.Flags().Bool("json", false, "print the full turn result as JSON")
}
