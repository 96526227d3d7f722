package main

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"attune/internal/api"
	"attune/internal/config"
	"attune/internal/queue"
)

type commandContext struct {
	addrFlag   *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(addrFlag, configFlag *string) *commandContext {
	return &commandContext{
		addrFlag:   addrFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// daemonAddr resolves the HTTP address of a running daemon. A wildcard
// bind in the config is rewritten to loopback for dialing.
func (c *commandContext) daemonAddr() string {
	if c.addrFlag != nil && strings.TrimSpace(*c.addrFlag) != "" {
		return strings.TrimSpace(*c.addrFlag)
	}
	bind := "0.0.0.0:8080"
	if cfg := c.configValue(); cfg != nil && strings.TrimSpace(cfg.Paths.APIBind) != "" {
		bind = strings.TrimSpace(cfg.Paths.APIBind)
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return bind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

// withClient runs fn against a daemon that must be up. A dead daemon is a
// user-correctable condition, so the error spells out the fix.
func (c *commandContext) withClient(ctx context.Context, fn func(*api.Client) error) error {
	addr := c.daemonAddr()
	client, err := api.NewClient(addr)
	if err != nil {
		return err
	}
	if err := client.Healthy(ctx); err != nil {
		return fmt.Errorf("daemon is not reachable at %s; start it with `attune serve`", addr)
	}
	return fn(client)
}

// withQueue prefers a running daemon for queue access and falls back to
// opening the store directly when no daemon answers.
func (c *commandContext) withQueue(ctx context.Context, fn func(client *api.Client, store *queue.Store) error) error {
	addr := c.daemonAddr()
	if client, err := api.NewClient(addr); err == nil {
		if err := client.Healthy(ctx); err == nil {
			return fn(client, nil)
		}
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()
	return fn(nil, store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
