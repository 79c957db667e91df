package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"docchat/internal/bootstrap"
	"docchat/internal/logging"
)

func newProvisionCmd(rt *cliState) *cobra.Command {
	var (
		userID     uint
		documentID string
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Embed one document synchronously",
		Long: `Ensure the embeddings of a document exist, creating them if needed.

Running it again for an already embedded document is a no-op that prints
the same namespace.

Example:
  docchat provision --user-id 7 --document-id 3f0c...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == 0 || documentID == "" {
				return fmt.Errorf("provision: --user-id and --document-id are required")
			}
			ctx := logging.WithLogger(cmd.Context(), rt.log)

			a, err := bootstrap.New(ctx, rt.cfg, rt.log, bootstrap.Options{})
			if err != nil {
				return fmt.Errorf("provision: bootstrap failed: %w", err)
			}
			defer func() {
				if err := a.Close(); err != nil {
					rt.log.Error("close resources failed", "error", err)
				}
			}()

			handle, err := a.Provisioner.EnsureEmbeddings(ctx, userID, documentID)
			if err != nil {
				return fmt.Errorf("provision: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), handle.Namespace())
			return nil
		},
	}

	cmd.Flags().UintVar(&userID, "user-id", 0, "Owner of the document")
	cmd.Flags().StringVar(&documentID, "document-id", "", "Document to embed")
	return cmd
}
