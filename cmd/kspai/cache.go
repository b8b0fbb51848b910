package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	var expiredOnly bool
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove cached answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, p, err := loadPipeline(ctx, *configPath)
			if err != nil {
				return err
			}
			defer p.Close()

			out := cmd.OutOrStdout()
			if expiredOnly {
				if p.store == nil {
					return errors.New("no database configured")
				}
				n, err := p.store.DeleteExpiredCache(ctx, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Expired cache entries removed: %d\n", n)
				return nil
			}
			p.cache.Purge(ctx)
			fmt.Fprintln(out, "All cache entries removed.")
			return nil
		},
	}
	purgeCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only remove expired entries")

	cmd.AddCommand(purgeCmd)
	return cmd
}
