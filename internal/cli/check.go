package cli

import (
	"context"
	"fmt"
	"time"

	"einstein-dashboard/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewCheckCmd validates the configuration and probes the services the
// server depends on.
func NewCheckCmd(configPath *string) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate config and check backend and store connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runCheck(ctx, cmd, *configPath)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for each dependency")
	return cmd
}

func runCheck(ctx context.Context, cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cmd.Printf("config %s ok\n", configPath)

	st, err := openStack(cfg)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer st.shutdown()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := st.client.Ping(ctx); err != nil {
			return fmt.Errorf("backend %s: %w", cfg.API.BaseURL, err)
		}
		cmd.Printf("backend %s reachable\n", cfg.API.BaseURL)
		return nil
	})
	if st.redis != nil {
		g.Go(func() error {
			if err := st.redis.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
			}
			cmd.Printf("redis %s reachable\n", cfg.Redis.Addr)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	cmd.Printf("%s session store ready\n", cfg.SessionStore())
	return nil
}
