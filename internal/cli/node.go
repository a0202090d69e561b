package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewNodeCmd создаёт группу команд для работы с узлами.
func NewNodeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Inspect and drive workflow nodes",
	}

	cmd.AddCommand(
		newNodeShowCmd(clientFn, outputFn),
		newNodeHistoryCmd(clientFn, outputFn),
		newNodeStatusCmd(clientFn, outputFn),
		newNodeActionCmd(clientFn, outputFn, "reset", "Deactivate all descendants of a node"),
		newNodeActionCmd(clientFn, outputFn, "retry", "Retry a node immediately"),
		newNodeActionCmd(clientFn, outputFn, "deactivate", "Deactivate a node and its descendants"),
	)

	return cmd
}

var nodeHeaders = []string{"ID", "SEQ", "NAME", "TYPE", "MODE", "SERVER", "CLIENT", "RETRIES"}

func nodeRow(n *NodeResponse) []string {
	return []string{
		n.ID,
		strconv.FormatInt(n.Seq, 10),
		n.Name,
		n.LegacyType,
		n.Mode,
		n.CurrentServerStatus,
		n.CurrentClientStatus,
		strconv.Itoa(n.RetriesRemaining),
	}
}

func newNodeShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NODE_ID",
		Short: "Show a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := clientFn().GetNode(args[0])
			if err != nil {
				return err
			}
			outputFn().Print(nodeHeaders, [][]string{nodeRow(node)}, node)
			return nil
		},
	}
}

func newNodeHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "history NODE_ID",
		Short: "Show status changes of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := clientFn().NodeHistory(args[0])
			if err != nil {
				return err
			}

			headers := []string{"TIME", "DIMENSION", "FROM", "TO", "RESPONSE"}
			rows := make([][]string, len(changes))
			for i, c := range changes {
				rows[i] = []string{c.CreatedAt, c.StatusType, c.FromStatus, c.ToStatus, string(c.Response)}
			}
			outputFn().Print(headers, rows, changes)
			return nil
		},
	}
}

func newNodeStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var response string

	cmd := &cobra.Command{
		Use:   "status NODE_ID STATUS",
		Short: "Report client status: processing, completed, errored, deactivated",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body json.RawMessage
			if response != "" {
				if !json.Valid([]byte(response)) {
					return fmt.Errorf("--response must be valid JSON")
				}
				body = json.RawMessage(response)
			}

			if err := clientFn().UpdateNodeStatus(args[0], args[1], body); err != nil {
				return err
			}
			outputFn().Success("Node " + args[0] + " status: " + args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&response, "response", "", "Client response stored in the status history (JSON)")

	return cmd
}

func newNodeActionCmd(clientFn func() *Client, outputFn func() *Output, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " NODE_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().NodeAction(args[0], action); err != nil {
				return err
			}
			outputFn().Success("Node " + args[0] + ": " + action + " done")
			return nil
		},
	}
}
