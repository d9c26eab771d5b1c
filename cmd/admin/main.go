package main

import (
	"context"
	"directchat/backend/internal/storage"
	"directchat/backend/internal/validation"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type adminConfig struct {
	DatabaseDSN string `envconfig:"DATABASE_DSN" required:"true"`
}

const usage = `Usage: admin <command> [args]

Commands:
  users <prefix>        list users whose username starts with prefix
  chats                 list every chat with its members
  messages <chat_id>    print the history of a chat, newest first`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	_ = godotenv.Load()
	var cfg adminConfig
	if err := envconfig.Process("DIRECTCHAT", &cfg); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	db, err := storage.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	storageSvc := storage.NewStorageService(db, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, storageSvc, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, s storage.Storage, out io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "users":
		if len(args) != 2 {
			return errors.New("usage: admin users <prefix>")
		}
		return listUsers(ctx, s, out, args[1])
	case "chats":
		return listChats(ctx, s, out)
	case "messages":
		if len(args) != 2 {
			return errors.New("usage: admin messages <chat_id>")
		}
		chatID, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil || chatID == 0 {
			return fmt.Errorf("invalid chat id %q", args[1])
		}
		return listMessages(ctx, s, out, uint(chatID))
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func listUsers(ctx context.Context, s storage.Storage, out io.Writer, prefix string) error {
	users, err := s.SearchUsers(ctx, validation.NormalizeUsername(prefix), 100)
	if err != nil {
		return err
	}
	table := newTable(out, "ID", "Username", "Created")
	for _, u := range users {
		table.Append([]string{u.ID, u.Username, u.CreatedAt.Format(time.RFC3339)})
	}
	table.Render()
	return nil
}

func listChats(ctx context.Context, s storage.Storage, out io.Writer) error {
	chats, err := s.ListChats(ctx)
	if err != nil {
		return err
	}
	table := newTable(out, "Chat", "Members", "Created")
	for _, c := range chats {
		table.Append([]string{
			strconv.FormatUint(uint64(c.ID), 10),
			strings.Join(c.MemberIDs(), ","),
			c.CreatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
	return nil
}

func listMessages(ctx context.Context, s storage.Storage, out io.Writer, chatID uint) error {
	messages, err := s.GetMessages(ctx, chatID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		fmt.Fprintf(out, "chat %d has no messages\n", chatID)
		return nil
	}
	table := newTable(out, "ID", "Sender", "Sent", "Message")
	for _, m := range messages {
		table.Append([]string{
			strconv.FormatUint(uint64(m.ID), 10),
			m.UserID,
			m.SentAt.Format(time.RFC3339),
			strconv.Quote(m.Message),
		})
	}
	table.Render()
	return nil
}

// newTable renders borderless, left-aligned, tab-padded tables.
func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
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
	return table
}
