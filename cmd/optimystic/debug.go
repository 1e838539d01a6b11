package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/repository"
	"github.com/cuemby/optimystic/internal/transport"
)

// dialPeer connects to --peer and prints the outcome of fn against it,
// closing the connection afterward. Every debug subcommand shares this
// shape: dial, invoke one transactor RPC, render JSON, disconnect.
func dialPeer(cmd *cobra.Command, fn func(ctx context.Context, client *transport.Client) (interface{}, error)) error {
	peer, _ := cmd.Flags().GetString("peer")
	if peer == "" {
		return fmt.Errorf("--peer is required")
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := transport.Dial(ctx, peer)
	if err != nil {
		return fmt.Errorf("dial %s: %w", peer, err)
	}
	defer client.Close()

	result, err := fn(ctx, client)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("render response: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func splitBlockIds(s string) []block.Id {
	var out []block.Id
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, block.Id(part))
		}
	}
	return out
}

var getCmd = &cobra.Command{
	Use:   "get --peer addr --block-ids id1,id2",
	Short: "Fetch the materialized state of one or more blocks from a peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		blockIds, _ := cmd.Flags().GetString("block-ids")
		revFlag, _ := cmd.Flags().GetInt64("rev")

		return dialPeer(cmd, func(ctx context.Context, client *transport.Client) (interface{}, error) {
			gctx := repository.GetContext{}
			if revFlag >= 0 {
				rev := block.Revision(revFlag)
				gctx.Rev = &rev
			}
			return client.Get(ctx, splitBlockIds(blockIds), gctx)
		})
	},
}

var pendCmd = &cobra.Command{
	Use:   "pend --peer addr --action-id id --transforms-json '...' --policy f|r|w",
	Short: "Pend a transform against a peer's storage repository",
	Long: `pend sends a raw PendRequest to a running peer. --transforms-json
takes a JSON-encoded block.Transforms document; see §3 and §6 for the
shape. This is a debugging aid, not the transaction submission path —
real callers go through the transaction coordinator (C9).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		actionId, _ := cmd.Flags().GetString("action-id")
		transformsJSON, _ := cmd.Flags().GetString("transforms-json")
		policy, _ := cmd.Flags().GetString("policy")
		revFlag, _ := cmd.Flags().GetInt64("rev")

		var transforms block.Transforms
		if err := json.Unmarshal([]byte(transformsJSON), &transforms); err != nil {
			return fmt.Errorf("parse --transforms-json: %w", err)
		}

		return dialPeer(cmd, func(ctx context.Context, client *transport.Client) (interface{}, error) {
			req := repository.PendRequest{
				ActionId:   block.ActionId(actionId),
				Transforms: transforms,
				Policy:     repository.Policy(policy),
			}
			if revFlag >= 0 {
				rev := block.Revision(revFlag)
				req.Rev = &rev
			}
			return client.Pend(ctx, req), nil
		})
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit --peer addr --action-id id --block-ids id1,id2 --tail-id id --rev N",
	Short: "Commit a previously pended action against a peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		actionId, _ := cmd.Flags().GetString("action-id")
		blockIds, _ := cmd.Flags().GetString("block-ids")
		tailId, _ := cmd.Flags().GetString("tail-id")
		rev, _ := cmd.Flags().GetInt64("rev")

		return dialPeer(cmd, func(ctx context.Context, client *transport.Client) (interface{}, error) {
			req := repository.CommitRequest{
				ActionId: block.ActionId(actionId),
				BlockIds: splitBlockIds(blockIds),
				TailId:   block.Id(tailId),
				Rev:      block.Revision(rev),
			}
			return client.Commit(ctx, req), nil
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel --peer addr --action-id id --block-ids id1,id2",
	Short: "Cancel a pending action against a peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		actionId, _ := cmd.Flags().GetString("action-id")
		blockIds, _ := cmd.Flags().GetString("block-ids")

		return dialPeer(cmd, func(ctx context.Context, client *transport.Client) (interface{}, error) {
			req := repository.CancelRequest{
				ActionId: block.ActionId(actionId),
				BlockIds: splitBlockIds(blockIds),
			}
			if err := client.Cancel(ctx, req); err != nil {
				return nil, err
			}
			return map[string]string{"status": "cancelled"}, nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{getCmd, pendCmd, commitCmd, cancelCmd} {
		c.Flags().String("peer", "", "Target peer address (host:port)")
		c.Flags().Duration("timeout", 5*time.Second, "RPC deadline")
	}

	getCmd.Flags().String("block-ids", "", "Comma-separated block ids")
	getCmd.Flags().Int64("rev", -1, "Revision to read (defaults to latest)")

	pendCmd.Flags().String("action-id", "", "Action id for this proposed edit")
	pendCmd.Flags().String("transforms-json", "{}", "JSON-encoded block.Transforms document")
	pendCmd.Flags().String("policy", string(repository.PolicyReturn), "Pending-conflict policy: f|r|w")
	pendCmd.Flags().Int64("rev", -1, "New revision this action proposes; committed revisions at or above it are reported as missing (-1 leaves it unset)")

	commitCmd.Flags().String("action-id", "", "Action id to commit")
	commitCmd.Flags().String("block-ids", "", "Comma-separated block ids touched by the action")
	commitCmd.Flags().String("tail-id", "", "Collection log tail block id (critical block)")
	commitCmd.Flags().Int64("rev", 0, "New revision being committed")

	cancelCmd.Flags().String("action-id", "", "Action id to cancel")
	cancelCmd.Flags().String("block-ids", "", "Comma-separated block ids touched by the action")
}
