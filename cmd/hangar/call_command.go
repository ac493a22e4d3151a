package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/hangar/internal/app"
	"github.com/five82/hangar/internal/rspc"
)

func newCallCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "call <query|mutation> <procedure> [json-input]",
		Short: "Invoke any control-plane procedure and print the result",
		Example: "  hangar call query instance.list\n" +
			`  hangar call mutation instance.start '{"id":"i-1"}'`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			var input any
			if len(args) == 3 {
				raw := strings.TrimSpace(args[2])
				if !json.Valid([]byte(raw)) {
					return fmt.Errorf("input is not valid JSON")
				}
				input = json.RawMessage(raw)
			}
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				data, err := rt.Client.Call(cmd.Context(), kind, args[1], input)
				if err != nil {
					return err
				}
				return writeRaw(cmd, data)
			})
		},
	}
}

func parseKind(value string) (rspc.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "query", "q":
		return rspc.KindQuery, nil
	case "mutation", "mutate", "m":
		return rspc.KindMutation, nil
	}
	return "", fmt.Errorf("kind must be query or mutation, got %q", value)
}

func writeRaw(cmd *cobra.Command, data json.RawMessage) error {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	buf.WriteByte('\n')
	_, err := cmd.OutOrStdout().Write(buf.Bytes())
	return err
}
