package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"docchat/internal/chatsession"
	"docchat/internal/logging"
)

func newChatCmd(rt *cliState) *cobra.Command {
	var (
		serverURL  string
		token      string
		documentID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a document from the terminal",
		Long: `Open an interactive conversation about one document.

The transcript is loaded from the server and kept in sync with other
clients. Type a question and press enter; an empty line is ignored and
"/quit" or end of input leaves.

Example:
  docchat chat --server http://127.0.0.1:8080 --token $TOKEN --document-id 3f0c...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" || documentID == "" {
				return fmt.Errorf("chat: --token and --document-id are required")
			}
			if serverURL == "" {
				serverURL = fmt.Sprintf("http://127.0.0.1:%d", rt.cfg.App.Port)
			}
			ctx, cancel := context.WithCancel(logging.WithLogger(cmd.Context(), rt.log))
			defer cancel()

			client := chatsession.NewClient(serverURL, token)
			ctrl := chatsession.NewController(documentID, client, client)
			return runTerminal(ctx, ctrl, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Base URL of the docchat server (default: local listener)")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token from /api/v1/auth/login")
	cmd.Flags().StringVar(&documentID, "document-id", "", "Document to chat about")
	return cmd
}

// runTerminal renders every state change as the full transcript and reads
// questions line by line.
func runTerminal(ctx context.Context, ctrl *chatsession.Controller, in io.Reader, out io.Writer) error {
	r := &renderer{out: out}
	ctrl.OnChange(r.render)

	syncErr := make(chan error, 1)
	go func() { syncErr <- ctrl.Run(ctx) }()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" {
			break
		}
		if line == "" {
			continue
		}
		ctrl.SetInput(line)
		// Failures are already rendered inline by the controller.
		_ = ctrl.Submit(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("chat: read input: %w", err)
	}

	select {
	case err := <-syncErr:
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("chat: transcript sync: %w", err)
		}
	default:
	}
	return nil
}

type renderer struct {
	mu          sync.Mutex
	out         io.Writer
	shown       int
	placeholder bool
}

// render prints messages not yet shown. A placeholder is printed once and
// never counted as shown, so its replacement is printed when it arrives.
func (r *renderer) render(s chatsession.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shown > len(s.Messages) {
		r.shown = 0
	}
	for _, m := range s.Messages[r.shown:] {
		if m.Role == chatsession.RolePlaceholder {
			if !r.placeholder {
				fmt.Fprintf(r.out, "ai> %s\n", m.Text)
				r.placeholder = true
			}
			return
		}
		prefix := "ai>"
		if m.Role == chatsession.RoleHuman {
			prefix = "you>"
		}
		fmt.Fprintf(r.out, "%s %s\n", prefix, m.Text)
		r.shown++
		r.placeholder = false
	}
}
