package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"graf/internal/bands"
	"graf/internal/db"
	"graf/internal/logging"
	"graf/internal/ops"
)

// statusError reports an operation that completed with a non-zero status.
// The result has already been printed.
type statusError struct {
	status ops.Status
}

func (e *statusError) Error() string {
	return fmt.Sprintf("operation finished with status %d (%s)", int(e.status), e.status)
}

func newOpCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "op <action> [field=value ...]",
		Short: "Run one graph operation and print its result",
		Example: `  grafd op create_node name=Ada x=10 y=20 year=1990 sex=F
  grafd op create_edge a=100 b=101
  grafd op fetch_graph`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseFields(args[0], args[1:])
			if err != nil {
				return err
			}

			config, err := flags.load()
			if err != nil {
				return err
			}
			logger, err := logging.New(config.LogLevel, config.Debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			database, err := db.Open(config.DBURL)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer database.Close()

			picker := bands.NewPicker(config.Bands, config.DefaultBand)
			dispatcher := ops.NewDispatcher(database, config, picker, logger, nil)

			res := dispatcher.Dispatch(cmd.Context(), req)

			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if !res.OK() {
				return &statusError{status: res.Status}
			}
			return nil
		},
	}
}

// parseFields builds a request from an action and field=value arguments.
func parseFields(action string, args []string) (ops.Request, error) {
	req := ops.Request{"action": action}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not of the form field=value", arg)
		}
		if key == "action" {
			return nil, errors.New("the action is given as the first argument, not as a field")
		}
		req[key] = value
	}
	return req, nil
}
