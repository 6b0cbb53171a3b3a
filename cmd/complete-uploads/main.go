package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"intake-backend/client"
	"intake-backend/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		server      string
		patientID   string
		maxAttempts int
		timeout     time.Duration
		initial     time.Duration
		maxDelay    time.Duration
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "complete-uploads [document-id...]",
		Short: "Report a finished upload batch and wait until it has been analyzed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			level := "info"
			if verbose {
				level = "debug"
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), level, true)

			p := client.NewPoller(server,
				client.WithMaxAttempts(maxAttempts),
				client.WithTimeout(timeout),
				client.WithBackoff(initial, client.DefaultFactor, maxDelay),
				client.WithLogger(logger),
			)

			result, err := p.AwaitCompletion(cmd.Context(), client.CompleteRequest{
				PatientID:   patientID,
				DocumentIDs: ids,
			})
			if err != nil {
				logFailure(logger, err)
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "base URL of the intake server")
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id (omit to use the server's default patient)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", client.DefaultMaxAttempts, "maximum number of completion requests")
	cmd.Flags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "overall time budget")
	cmd.Flags().DurationVar(&initial, "initial-delay", client.DefaultInitialDelay, "delay before the first retry")
	cmd.Flags().DurationVar(&maxDelay, "max-delay", client.DefaultMaxDelay, "upper bound for the retry delay")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid document id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func logFailure(logger zerolog.Logger, err error) {
	var te *client.TimeoutError
	if errors.As(err, &te) {
		logger.Error().
			Int("attempts", te.Attempts).
			Ints64("unprocessed_ids", te.UnprocessedIDs).
			Msg("documents did not finish processing")
		return
	}
	logger.Error().Err(err).Msg("upload completion failed")
}
