package main

import (
	"chat-sync/domain"
	"chat-sync/infrastructure/storage"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	// OWNER restricts the listing to one user, every cached owner otherwise
	Owner   string `envconfig:"OWNER"`
	Colours bool   `envconfig:"COLOURS" default:"true"`
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	logger := logs.GetLoggerFromLevel(slog.LevelWarn)

	db, err := openDB(config.BadgerFilepath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	repository := storage.NewConversationRepository(db, logger)
	owners := []string{config.Owner}
	if config.Owner == "" {
		if owners, err = repository.Owners(); err != nil {
			log.Fatal(err)
		}
	}

	for _, owner := range owners {
		conversations, err := repository.List(owner)
		if err != nil {
			log.Fatal(err)
		}
		header := fmt.Sprintf("  ====== %s (%d) ======", owner, len(conversations))
		if config.Colours {
			header = color.New(color.BgBlack, color.FgGreen).Render(header)
		}
		fmt.Println(header)
		render(conversations)
	}
}

func render(conversations []domain.Conversation) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Peer", "Name", "Conversation", "Last message", "At"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, c := range conversations {
		at := ""
		if !c.LastMessageAt.IsZero() {
			at = c.LastMessageAt.Format("02-01 15:04")
		}
		table.Append([]string{
			c.PeerID,
			c.DisplayName,
			lo.Ternary(c.ID == "", "(unsaved)", c.ID),
			c.LastMessageBody,
			at,
		})
	}
	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// A crashed writer leaves the value log untruncated; a write open repairs it.
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			_ = db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
