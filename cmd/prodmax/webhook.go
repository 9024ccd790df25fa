package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"prodmax/internal/adapter/maxapi"
	"prodmax/internal/app"
)

func webhookCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the MAX webhook subscription",
	}

	client := func() (*maxapi.Client, string, string, error) {
		cfg, err := load()
		if err != nil {
			return nil, "", "", err
		}
		if cfg.MaxBotToken == "" {
			return nil, "", "", errors.New("MAX_BOT_TOKEN is required")
		}
		return maxapi.New(cfg.MaxAPIURL, cfg.MaxBotToken, cfg.MaxAPITimeout, cfg.Logger()), cfg.WebhookURL, cfg.WebhookSecret, nil
	}

	setCmd := &cobra.Command{
		Use:   "set [url]",
		Short: "Subscribe the bot to updates at url (default WEBHOOK_URL)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, target, secret, err := client()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				target = args[0]
			}
			if target == "" {
				return errors.New("webhook url is not set")
			}
			res, err := c.Subscribe(cmd.Context(), target, secret)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "List webhook subscriptions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, _, err := client()
			if err != nil {
				return err
			}
			subs, err := c.Subscriptions(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, subs)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [url]",
		Short: "Remove the webhook subscription",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, target, _, err := client()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				target = args[0]
			}
			res, err := c.Unsubscribe(cmd.Context(), target)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cmd.AddCommand(setCmd, showCmd, deleteCmd)
	return cmd
}

func hashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the bcrypt hash to use as ADMIN_TOKEN_HASH (reads stdin without an argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			hash, err := app.HashToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
