package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"salon-sync/auth"
	"salon-sync/domain"
	"salon-sync/infrastructure/rest"
	"salon-sync/internal"
	"strconv"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// inbox prints the chat rooms and notifications of the ACCESS_TOKEN identity
// as fetched from the backend, without opening a broker connection.
func main() {
	colours := flag.Bool("colors", true, "Colorize unread rows")
	onlyUnread := flag.Bool("unread", false, "Only show rooms and notifications with unread items")
	flag.Parse()

	config, err := internal.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	identity, err := auth.IdentityFromToken(config.AccessToken, []byte(config.TokenSecret))
	if err != nil {
		log.Fatalf("Token error: %v", err)
	}
	api, err := rest.NewClient(logger, config.APIBaseURL, config.RequestTimeout)
	if err != nil {
		log.Fatalf("API error: %v", err)
	}
	api.SetToken(identity.Token)

	ctx, cancel := context.WithTimeout(context.Background(), config.RequestTimeout)
	defer cancel()

	rooms, err := api.Rooms(ctx, identity)
	if err != nil {
		log.Fatalf("Fetching rooms: %v", err)
	}
	notifications, err := api.List(ctx)
	if err != nil {
		log.Fatalf("Fetching notifications: %v", err)
	}

	fmt.Printf("Inbox of %s\n\n", identity)
	printRooms(rooms, *colours, *onlyUnread)
	fmt.Println()
	printNotifications(notifications, *colours, *onlyUnread)
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
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

func printRooms(rooms []domain.ChatRoom, colours, onlyUnread bool) {
	table := newTable([]string{"Room", "Unread", "Last message", "At"})
	for _, r := range rooms {
		if onlyUnread && r.UnreadCount == 0 {
			continue
		}
		row := []string{
			strconv.FormatInt(int64(r.ID), 10),
			strconv.Itoa(r.UnreadCount),
			truncate(r.LastMessage, 60),
			formatTime(r.LastMessageAt),
		}
		if colours && r.UnreadCount > 0 {
			row = paint(row, color.New(color.FgGreen, color.OpBold))
		}
		table.Append(row)
	}
	table.Render()
}

func printNotifications(items []domain.Notification, colours, onlyUnread bool) {
	table := newTable([]string{"ID", "Kind", "Title", "Read", "Reference", "Created"})
	for _, n := range items {
		if onlyUnread && n.Read {
			continue
		}
		row := []string{
			strconv.FormatInt(n.ID, 10),
			string(n.Kind),
			truncate(n.Title, 40),
			strconv.FormatBool(n.Read),
			strconv.FormatInt(n.ReferenceID, 10),
			formatTime(n.CreatedAt),
		}
		if colours && !n.Read {
			row = paint(row, severityStyle(n.Kind.Severity()))
		}
		table.Append(row)
	}
	table.Render()
}

func severityStyle(s domain.Severity) color.Style {
	switch s {
	case domain.SeveritySuccess:
		return color.New(color.FgGreen)
	case domain.SeverityWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

func paint(row []string, style color.Style) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = style.Render(cell)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
