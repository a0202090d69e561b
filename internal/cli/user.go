package cli

import (
	"github.com/spf13/cobra"
)

// NewUserCmd создаёт группу команд для управления клиентами.
func NewUserCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage client registrations",
	}

	cmd.AddCommand(
		newUserCreateCmd(clientFn, outputFn),
		newUserShowCmd(clientFn, outputFn),
	)

	return cmd
}

var userHeaders = []string{"ID", "NAME", "DECISION", "ACTIVITY", "NOTIFICATION"}

func userRow(u *UserResponse) []string {
	return []string{u.ID, u.Name, u.DecisionEndpoint, u.ActivityEndpoint, u.NotificationEndpoint}
}

func newUserCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateUserRequest

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Register a client and its endpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			user, err := clientFn().CreateUser(req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Print(userHeaders, [][]string{userRow(user)}, user)
			out.Success("User " + user.ID + " created")
			return nil
		},
	}

	cmd.Flags().StringVar(&req.DecisionEndpoint, "decision-endpoint", "", "URL receiving decisions")
	cmd.Flags().StringVar(&req.ActivityEndpoint, "activity-endpoint", "", "URL receiving activities")
	cmd.Flags().StringVar(&req.NotificationEndpoint, "notification-endpoint", "", "URL receiving error notifications")

	return cmd
}

func newUserShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show USER_ID",
		Short: "Show a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := clientFn().GetUser(args[0])
			if err != nil {
				return err
			}
			outputFn().Print(userHeaders, [][]string{userRow(user)}, user)
			return nil
		},
	}
}
