package docs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ValentinKolb/uorm/lib/uorm"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type pinger interface {
	Ping(ctx context.Context) error
}

var (
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Checks the connection to every configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			targets := map[string]any{"meta": router.Meta()}
			for _, id := range router.Shards() {
				targets["shard "+id], _ = router.Shard(id)
			}
			for name, d := range targets {
				p, ok := d.(pinger)
				if !ok {
					continue
				}
				start := time.Now()
				if err := p.Ping(ctx); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				fmt.Printf("%s: ok (%s)\n", name, time.Since(start))
			}
			return nil
		},
	}
	findCmd = &cobra.Command{
		Use:   "find [query]",
		Short: "Prints the documents matching an extended JSON query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := bson.M{}
			if len(args) == 1 {
				if err := bson.UnmarshalExtJSON([]byte(args[0]), false, &query); err != nil {
					return fmt.Errorf("invalid query: %w", err)
				}
			}

			var projection bson.M
			if fields, _ := cmd.Flags().GetString("fields"); fields != "" {
				projection = bson.M{}
				for _, f := range strings.Split(fields, ",") {
					projection[strings.TrimSpace(f)] = 1
				}
			}

			rows, err := coll.FindProjected(context.Background(), query, projection)
			if err != nil {
				return err
			}
			for _, row := range rows {
				if err := printDoc(row); err != nil {
					return err
				}
			}
			fmt.Fprintf(os.Stderr, "%d documents\n", len(rows))
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [expr...]",
		Short: "Reads documents by id or key field through the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			for _, expr := range args {
				start := time.Now()
				rec, err := coll.CacheGet(ctx, expr, uorm.RaiseIfNone(nil))
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "%s took %s\n", rec, time.Since(start))
				if err := printDoc(rec.ToDoc(true)); err != nil {
					return err
				}
			}
			if metrics, _ := cmd.Flags().GetBool("metrics"); metrics {
				manager.WritePrometheus(os.Stderr)
			}
			return nil
		},
	}
	invalidateCmd = &cobra.Command{
		Use:   "invalidate [expr...]",
		Short: "Deletes the cache entries of ids or key field values from both tiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, expr := range args {
				key := coll.CacheKey(uorm.ResolveID(expr))
				deleted, err := manager.Delete(key)
				if err != nil {
					return err
				}
				fmt.Printf("key=%s, deleted=%t\n", key, deleted)
			}
			return nil
		},
	}
)

func init() {
	findCmd.Flags().String("fields", "", "Comma-separated list of fields to print")
	getCmd.Flags().Bool("metrics", false, "Print the cache metrics after the lookups")
}

func printDoc(doc bson.M) error {
	out, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
