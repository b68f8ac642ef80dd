package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

func handleGet(ctx context.Context, c *apiClient, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	key := fs.String("key", "", "key to fetch")
	namespace := fs.String("namespace", "", "namespace (defaults to \"default\")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return fmt.Errorf("get requires -key")
	}
	q := url.Values{"key": {*key}}
	if *namespace != "" {
		q.Set("namespace", *namespace)
	}
	data, err := c.request(ctx, http.MethodGet, "/cache/get", q, nil)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func handleSet(ctx context.Context, c *apiClient, args []string) error {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	key := fs.String("key", "", "key to set")
	value := fs.String("value", "", "value to store")
	namespace := fs.String("namespace", "", "namespace (defaults to \"default\")")
	ttl := fs.Int64("ttl", 0, "TTL in seconds, 0 for the server default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return fmt.Errorf("set requires -key")
	}
	payload := map[string]any{"key": *key, "value": *value}
	if *namespace != "" {
		payload["namespace"] = *namespace
	}
	if *ttl > 0 {
		payload["ttl"] = *ttl
		payload["hasTtl"] = true
	}
	data, err := c.request(ctx, http.MethodPost, "/cache/set", nil, payload)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func handleDel(ctx context.Context, c *apiClient, args []string) error {
	fs := flag.NewFlagSet("del", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	key := fs.String("key", "", "key to delete")
	namespace := fs.String("namespace", "", "namespace (defaults to \"default\")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return fmt.Errorf("del requires -key")
	}
	payload := map[string]any{"keys": []string{*key}}
	if *namespace != "" {
		payload["namespace"] = *namespace
	}
	data, err := c.request(ctx, http.MethodPost, "/cache/del", nil, payload)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func handleKeys(ctx context.Context, c *apiClient, args []string) error {
	fs := flag.NewFlagSet("keys", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	pattern := fs.String("pattern", "*", "glob pattern")
	namespace := fs.String("namespace", "", "namespace (defaults to \"default\")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q := url.Values{"pattern": {*pattern}}
	if *namespace != "" {
		q.Set("namespace", *namespace)
	}
	data, err := c.request(ctx, http.MethodGet, "/cache/keys", q, nil)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func handleStats(ctx context.Context, c *apiClient, _ []string) error {
	data, err := c.request(ctx, http.MethodGet, "/cache/stats", nil, nil)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func handlePublish(ctx context.Context, c *apiClient, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	channel := fs.String("channel", "", "channel to publish to")
	message := fs.String("message", "", "message payload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *channel == "" {
		return fmt.Errorf("publish requires -channel")
	}
	data, err := c.request(ctx, http.MethodPost, "/cache/publish", nil, map[string]string{
		"channel": *channel,
		"message": *message,
	})
	if err != nil {
		return err
	}
	return printJSON(data)
}

func handleInstances(ctx context.Context, c *apiClient, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("instances requires a subcommand: list, delete")
	}
	switch args[0] {
	case "list":
		data, err := c.request(ctx, http.MethodGet, "/cache/instances", nil, nil)
		if err != nil {
			return err
		}
		return printJSON(data)
	case "delete":
		fs := flag.NewFlagSet("instances delete", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		id := fs.String("id", "", "instance ID")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *id == "" {
			return fmt.Errorf("instances delete requires -id")
		}
		data, err := c.request(ctx, http.MethodDelete, "/cache/instances/"+*id, nil, nil)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			fmt.Println("deleted")
			return nil
		}
		return printJSON(data)
	default:
		return fmt.Errorf("unknown instances subcommand %q", args[0])
	}
}

func handleHealth(ctx context.Context, c *apiClient) error {
	data, err := c.request(ctx, http.MethodGet, "/cache/health", nil, nil)
	if err != nil {
		return err
	}
	return printJSON(data)
}
