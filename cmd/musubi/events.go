package main

import (
	"encoding/json"
	"os"

	"github.com/harunnryd/musubi/internal/config"
	"github.com/harunnryd/musubi/internal/eventgraph"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the event graph",
}

var eventsQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query stored events by trace, session, or person",
	Long:  `Print matching events as JSON lines, ordered by timestamp.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		traceID, _ := cmd.Flags().GetString("trace")
		sessionID, _ := cmd.Flags().GetString("session")
		personID, _ := cmd.Flags().GetString("person")
		limit, _ := cmd.Flags().GetInt("limit")

		dir, err := config.ExpandPath(cfg.EventGraph.Dir)
		if err != nil {
			return err
		}
		store, err := eventgraph.NewStore(dir, cfg.EventGraph.File, cfg.EventGraph.Redact)
		if err != nil {
			return err
		}

		events, err := store.Query(eventgraph.Query{
			TraceID:   traceID,
			SessionID: sessionID,
			PersonID:  personID,
			Limit:     limit,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		for _, evt := range events {
			if err := enc.Encode(evt); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	eventsQueryCmd.Flags().String("trace", "", "filter by trace ID")
	eventsQueryCmd.Flags().String("session", "", "filter by session ID")
	eventsQueryCmd.Flags().String("person", "", "filter by person ID")
	eventsQueryCmd.Flags().Int("limit", 0, "maximum events to return (default 500, capped at 5000)")
	eventsCmd.AddCommand(eventsQueryCmd)
	rootCmd.AddCommand(eventsCmd)
}
