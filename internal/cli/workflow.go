package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewWorkflowCmd создаёт группу команд для управления workflows.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflows",
	}

	cmd.AddCommand(
		newWorkflowCreateCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
		newWorkflowTreeCmd(clientFn, outputFn),
		newWorkflowSignalCmd(clientFn, outputFn),
		newWorkflowActionCmd(clientFn, outputFn, "pause", "Pause a workflow"),
		newWorkflowActionCmd(clientFn, outputFn, "resume", "Resume a paused workflow"),
		newWorkflowActionCmd(clientFn, outputFn, "complete", "Complete a workflow"),
	)

	return cmd
}

var workflowHeaders = []string{"ID", "NAME", "STATUS", "DECIDER", "SUBJECT"}

func workflowRow(wf *WorkflowResponse) []string {
	return []string{wf.ID, wf.Name, wf.Status, wf.Decider, wf.Subject}
}

func newWorkflowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateWorkflowRequest

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Find or create a workflow by user, subject and decider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			wf, err := clientFn().FindOrCreateWorkflow(req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Print(workflowHeaders, [][]string{workflowRow(wf)}, wf)
			if wf.Created {
				out.Success("Workflow " + wf.ID + " created")
			} else {
				out.Success("Workflow " + wf.ID + " already exists")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.UserID, "user-id", "", "Owner user ID (required)")
	cmd.Flags().StringVar(&req.Subject, "subject", "", "Workflow subject, usually JSON (required)")
	cmd.Flags().StringVar(&req.Decider, "decider", "", "Decider name (required)")
	cmd.MarkFlagRequired("user-id")
	cmd.MarkFlagRequired("subject")
	cmd.MarkFlagRequired("decider")

	return cmd
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show WORKFLOW_ID",
		Short: "Show a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := clientFn().GetWorkflow(args[0])
			if err != nil {
				return err
			}
			outputFn().Print(workflowHeaders, [][]string{workflowRow(wf)}, wf)
			return nil
		},
	}
}

func newWorkflowTreeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tree WORKFLOW_ID",
		Short: "Print the node tree of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := clientFn().GetTree(args[0])
			if err != nil {
				return err
			}
			outputFn().Tree(*tree)
			return nil
		},
	}
}

func newWorkflowSignalCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req SignalRequest
	var data string

	cmd := &cobra.Command{
		Use:   "signal WORKFLOW_ID NAME",
		Short: "Send a signal to a workflow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data must be valid JSON")
				}
				req.ClientData = json.RawMessage(data)
			}

			node, err := clientFn().Signal(args[0], args[1], req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Print(nodeHeaders, [][]string{nodeRow(node)}, node)
			out.Success("Signal " + node.ID + " accepted")
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Mode, "mode", "", "Node mode: blocking, non_blocking, fire_and_forget")
	cmd.Flags().StringVar(&data, "data", "", "Client data as JSON")

	return cmd
}

func newWorkflowActionCmd(clientFn func() *Client, outputFn func() *Output, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " WORKFLOW_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().WorkflowAction(args[0], action); err != nil {
				return err
			}
			outputFn().Success("Workflow " + args[0] + ": " + action + " done")
			return nil
		},
	}
}
