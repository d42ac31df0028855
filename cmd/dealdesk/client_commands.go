package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/openhouselabs/dealdesk/client"
)

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP API client commands",
		Subcommands: []*cli.Command{
			submitCommand(),
			renderCommand(),
			getCommand(),
			listCommand(),
		},
	}
}

// readRecord reads one transaction record (JSON) from a file or stdin.
func readRecord(path string) (map[string]interface{}, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var record map[string]interface{}
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("invalid record JSON: %w", err)
	}
	return record, nil
}

func cliLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
}

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Submit a transaction record through the full delivery pipeline",
		ArgsUsage: "[RECORD_FILE|-]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:8080",
				Usage:   "HTTP server URL",
				EnvVars: []string{"DEALDESK_SERVER_URL"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   2 * time.Minute,
				Usage:   "How long to wait for the pipeline to complete",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			record, err := readRecord(c.Args().Get(0))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			cl := client.NewClient(c.String("server"), nil, cliLogger())
			result, err := cl.Submit(ctx, record)
			if err != nil {
				return fmt.Errorf("failed to submit record: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(result)
			}

			fmt.Printf("✓ Submission processed\n")
			fmt.Printf("  Submission ID: %s\n", result.SubmissionID)
			fmt.Printf("  Filename:      %s\n", result.Filename)
			if result.EmailSent != nil {
				fmt.Printf("  Email Sent:    %v\n", *result.EmailSent)
			}
			if result.AttachmentSuccess != nil {
				fmt.Printf("  Attached:      %v\n", *result.AttachmentSuccess)
			}
			if result.PDFURL != "" {
				fmt.Printf("  PDF URL:       %s\n", result.PDFURL)
			}
			return nil
		},
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Aliases:   []string{"pdf"},
		Usage:     "Render the document for a record and save it locally, skipping delivery",
		ArgsUsage: "[RECORD_FILE|-]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:8080",
				Usage:   "HTTP server URL",
				EnvVars: []string{"DEALDESK_SERVER_URL"},
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output path (defaults to the server-generated filename)",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   2 * time.Minute,
				Usage:   "Request timeout",
			},
		},
		Action: func(c *cli.Context) error {
			record, err := readRecord(c.Args().Get(0))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			cl := client.NewClient(c.String("server"), nil, cliLogger())
			pdf, filename, err := cl.SubmitForPDF(ctx, record)
			if err != nil {
				return fmt.Errorf("failed to render document: %w", err)
			}

			out := c.String("output")
			if out == "" {
				out = filename
			}
			if err := os.WriteFile(out, pdf, 0o644); err != nil {
				return fmt.Errorf("failed to write document: %w", err)
			}

			fmt.Printf("✓ Document rendered\n")
			fmt.Printf("  File:  %s\n", out)
			fmt.Printf("  Bytes: %d\n", len(pdf))
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Aliases:   []string{"show"},
		Usage:     "Get details for an archived submission",
		ArgsUsage: "SUBMISSION_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:8080",
				Usage:   "HTTP server URL",
				EnvVars: []string{"DEALDESK_SERVER_URL"},
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("submission id is required")
			}

			cl := client.NewClient(c.String("server"), nil, cliLogger())
			sub, err := cl.GetSubmission(context.Background(), c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to get submission: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(sub)
			}

			printSubmission(sub)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List archived submissions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:8080",
				Usage:   "HTTP server URL",
				EnvVars: []string{"DEALDESK_SERVER_URL"},
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   50,
				Usage:   "Limit number of submissions",
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Pagination offset",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Aliases: []string{"jq"},
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			// Compile jq filters
			jqFilters := c.StringSlice("must-jq")
			compiledJQFilters := make([]*gojq.Code, len(jqFilters))
			for i, filter := range jqFilters {
				query, err := gojq.Parse(filter)
				if err != nil {
					return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
				}
				compiledJQFilters[i], err = gojq.Compile(query)
				if err != nil {
					return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
				}
			}

			cl := client.NewClient(c.String("server"), nil, cliLogger())
			subs, err := cl.ListSubmissions(context.Background(), c.Int("limit"), c.Int("offset"))
			if err != nil {
				return fmt.Errorf("failed to list submissions: %w", err)
			}

			if len(compiledJQFilters) > 0 {
				filtered := make([]*client.Submission, 0, len(subs))
				for _, sub := range subs {
					ok, err := matchesAllJQFilters(sub, compiledJQFilters)
					if err != nil {
						return err
					}
					if ok {
						filtered = append(filtered, sub)
					}
				}
				subs = filtered
			}

			if c.Bool("json") {
				return outputJSON(subs)
			}

			for i, sub := range subs {
				if i > 0 {
					fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
				}
				printSubmission(sub)
			}
			fmt.Fprintf(os.Stderr, "\nTotal: %d submissions\n", len(subs))
			return nil
		},
	}
}

// matchesAllJQFilters reports whether every compiled filter evaluates to true
// for the given submission.
func matchesAllJQFilters(sub *client.Submission, filters []*gojq.Code) (bool, error) {
	// gojq operates on generic JSON values; round-trip through encoding/json.
	data, err := json.Marshal(sub)
	if err != nil {
		return false, fmt.Errorf("failed to marshal submission: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return false, fmt.Errorf("failed to unmarshal submission: %w", err)
	}

	for _, code := range filters {
		iter := code.Run(input)
		v, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := v.(error); isErr {
			return false, fmt.Errorf("jq filter error: %w", err)
		}
		if b, isBool := v.(bool); !isBool || !b {
			return false, nil
		}
	}
	return true, nil
}

func printSubmission(sub *client.Submission) {
	fmt.Printf("ID:             %s\n", sub.ID)
	fmt.Printf("Transaction ID: %s\n", orNone(sub.TransactionID))
	fmt.Printf("Address:        %s\n", orNone(sub.Address))
	fmt.Printf("MLS Number:     %s\n", orNone(sub.MLSNumber))
	fmt.Printf("Filename:       %s\n", sub.Filename)
	fmt.Printf("Email Sent:     %v\n", sub.EmailSent)
	fmt.Printf("Attached:       %v\n", sub.AttachmentSuccess)
	fmt.Printf("PDF URL:        %s\n", orNone(sub.PDFURL))
	fmt.Printf("Created:        %s\n", sub.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:        %s\n", sub.UpdatedAt.Format(time.RFC3339))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
