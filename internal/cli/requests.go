package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/filo-ai/portal/internal/legacy"
	"github.com/filo-ai/portal/internal/model"
	natsclient "github.com/filo-ai/portal/internal/nats"
	"github.com/filo-ai/portal/internal/store"
	"github.com/filo-ai/portal/pkg/logger"
)

const migrateConcurrency = 4

// migrationNamespace scopes the name-based ids of migrated conversations.
var migrationNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://filo.ai/legacy/requests"))

// NewRequestsCommand groups the legacy request commands.
func NewRequestsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Manage legacy requests",
	}
	cmd.AddCommand(newRequestsListCommand(), newRequestsMigrateCommand())
	return cmd
}

func newRequestsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List legacy requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := legacy.Open(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer s.Close()

			return listRequests(cmd.Context(), cmd.OutOrStdout(), s)
		},
	}
}

func listRequests(ctx context.Context, w io.Writer, s *legacy.Store) error {
	reqs, err := s.Requests(ctx)
	if err != nil {
		return fmt.Errorf("failed to list requests: %w", err)
	}
	if len(reqs) == 0 {
		fmt.Fprintln(w, "No requests found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tCREATED")
	for _, r := range reqs {
		msgs, err := s.ChatMessages(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("failed to read chat %s: %w", r.ID, err)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.Title, len(msgs), r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func newRequestsMigrateCommand() *cobra.Command {
	var (
		userID     string
		natsURL    string
		clearChats bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy legacy requests and their chats into the conversation store",
		Example: `  filoctl requests migrate --user 0190f3c4-... --nats nats://localhost:4222
  filoctl requests migrate --user 0190f3c4-... --clear`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := legacy.Open(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer s.Close()

			client, err := natsclient.Connect(ctx, natsclient.Config{URL: natsURL}, logger.Global())
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer client.Close()

			convs, err := natsclient.NewStore(ctx, client)
			if err != nil {
				return err
			}

			n, err := migrateRequests(ctx, s, convs, userID, clearChats)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d new requests for user %s\n", n, userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Owner of the migrated conversations")
	cmd.Flags().StringVar(&natsURL, "nats", envOr("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	cmd.Flags().BoolVar(&clearChats, "clear", false, "Delete each legacy chat once migrated")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// migrateRequests copies every legacy request into dst as a conversation
// owned by userID. Messages keep their ids and order. Conversation ids are
// derived from the request id, so a rerun skips what is already there. It
// returns the number of conversations created.
func migrateRequests(ctx context.Context, src *legacy.Store, dst store.Conversations, userID string, clearChats bool) (int, error) {
	reqs, err := src.Requests(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list requests: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(migrateConcurrency)

	var created atomic.Int64
	for _, req := range reqs {
		g.Go(func() error {
			ok, err := migrateRequest(ctx, src, dst, userID, req, clearChats)
			if ok {
				created.Add(1)
			}
			return err
		})
	}
	err = g.Wait()
	return int(created.Load()), err
}

// migratedID is the conversation id a legacy request maps to for userID.
func migratedID(userID, requestID string) string {
	return uuid.NewSHA1(migrationNamespace, []byte(userID+"/"+requestID)).String()
}

func migrateRequest(ctx context.Context, src *legacy.Store, dst store.Conversations, userID string, req model.Request, clearChats bool) (bool, error) {
	msgs, err := src.ChatMessages(ctx, req.ID)
	if err != nil {
		return false, fmt.Errorf("failed to read chat %s: %w", req.ID, err)
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	conv := &model.Conversation{
		ID:        migratedID(userID, req.ID),
		UserID:    userID,
		Title:     req.Title,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	err = dst.CreateConversation(ctx, conv)
	switch {
	case errors.Is(err, store.ErrConflict):
		// Migrated by an earlier run.
		if clearChats {
			return false, src.ClearChatMessages(ctx, req.ID)
		}
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to create conversation for %s: %w", req.ID, err)
	}

	for _, m := range msgs {
		m.Sequence = 0
		if err := dst.AppendMessage(ctx, userID, conv.ID, m); err != nil {
			return true, fmt.Errorf("failed to copy message %s: %w", m.ID, err)
		}
	}

	if clearChats {
		return true, src.ClearChatMessages(ctx, req.ID)
	}
	return true, nil
}
