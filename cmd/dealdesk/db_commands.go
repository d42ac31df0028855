package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/openhouselabs/dealdesk/service/db"
)

func listSubmissionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-submissions",
		Usage:   "List archived submissions directly from the database",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of submissions",
				Value:   50,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Pagination offset",
			},
			&cli.BoolFlag{
				Name:  "failed-only",
				Usage: "Only show submissions where a delivery destination failed",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			subs, err := store.ListSubmissions(context.Background(), db.ListSubmissionsParams{
				Limit:  int32(c.Int("limit")),
				Offset: int32(c.Int("offset")),
			})
			if err != nil {
				return fmt.Errorf("failed to list submissions: %w", err)
			}

			if c.Bool("failed-only") {
				filtered := make([]*db.Submission, 0)
				for _, s := range subs {
					if !s.EmailSent || !s.AttachmentSuccess {
						filtered = append(filtered, s)
					}
				}
				subs = filtered
			}

			if c.Bool("json") {
				return outputJSON(subs)
			}

			// Pretty table output
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTRANSACTION\tADDRESS\tEMAIL\tATTACHED\tCREATED")
			for _, s := range subs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\t%s\n",
					s.ID,
					s.TransactionID,
					s.Address,
					s.EmailSent,
					s.AttachmentSuccess,
					s.CreatedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d submissions\n", len(subs))
			return nil
		},
	}
}

func getSubmissionCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-submission",
		Usage:     "Get submission details, including the archived raw record",
		Aliases:   []string{"get"},
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: submission id")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			sub, err := store.GetSubmission(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get submission: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(sub)
			}

			// Pretty output
			fmt.Printf("ID:             %s\n", sub.ID)
			fmt.Printf("Transaction ID: %s\n", sub.TransactionID)
			fmt.Printf("Address:        %s\n", sub.Address)
			fmt.Printf("MLS Number:     %s\n", sub.MLSNumber)
			fmt.Printf("Filename:       %s\n", sub.Filename)
			fmt.Printf("Email Sent:     %v\n", sub.EmailSent)
			fmt.Printf("Attached:       %v\n", sub.AttachmentSuccess)
			fmt.Printf("PDF URL:        %s\n", sub.PDFURL)
			fmt.Printf("Created:        %s\n", sub.CreatedAt.Format(time.RFC3339))
			fmt.Printf("Updated:        %s\n", sub.UpdatedAt.Format(time.RFC3339))
			if len(sub.RawRecord) > 0 {
				fmt.Printf("Raw Record:\n")
				var pretty map[string]interface{}
				if err := json.Unmarshal(sub.RawRecord, &pretty); err == nil {
					data, _ := json.MarshalIndent(pretty, "  ", "  ")
					fmt.Printf("  %s\n", string(data))
				} else {
					fmt.Printf("  %s\n", string(sub.RawRecord))
				}
			}

			return nil
		},
	}
}

// Helper function to connect to database
func getStore(c *cli.Context) (*db.Store, func(), error) {
	// Try to get from parent context first (for global flags)
	dbURL := c.String("database-url")
	if dbURL == "" && c.App != nil {
		// Try environment variable directly if flag not found
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool)
	closer := func() { pool.Close() }

	return store, closer, nil
}

// Helper function to output JSON
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
