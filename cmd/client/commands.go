package main

import (
	"context"
	"fmt"
	"os"
	"salon-sync/domain"
	"salon-sync/services"
	"strconv"
	"strings"
)

const usage = `commands:
  rooms                  list rooms with unread counts
  open <room>            open a room (history + mark read)
  close <room>           close a room
  send <room> <text>     send a text message
  photo <room> <file>    send an image
  read <room>            mark a room read
  translate <room> <key> toggle the translation of a message
  notifications          list notifications
  open-notification <id> open a notification
  read-all               mark every notification read
  delete <id>...         delete notifications
  notify on|off          enable or disable notifications
  focus on|off           simulate window focus`

func execute(ctx context.Context, session *services.Session, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	chat := session.Chat()
	if chat == nil {
		return fmt.Errorf("session is stopped")
	}

	switch cmd, args := fields[0], fields[1:]; cmd {
	case "rooms":
		for _, r := range chat.Rooms() {
			fmt.Printf("#%d  unread=%d  %s\n", r.ID, r.UnreadCount, r.LastMessage)
		}
		fmt.Printf("total unread: %d\n", session.Tracker().Total())
	case "open":
		room, err := roomArg(args, 0)
		if err != nil {
			return err
		}
		_, err = chat.OpenRoom(ctx, room)
		return err
	case "close":
		room, err := roomArg(args, 0)
		if err != nil {
			return err
		}
		chat.CloseRoom(ctx, room)
	case "send":
		room, err := roomArg(args, 0)
		if err != nil {
			return err
		}
		_, err = chat.SendMessage(ctx, services.SendCommand{Room: room, Text: strings.Join(args[1:], " ")})
		return err
	case "photo":
		room, err := roomArg(args, 0)
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return fmt.Errorf("missing file")
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		_, err = chat.SendMessage(ctx, services.SendCommand{Room: room, Images: [][]byte{data}})
		return err
	case "read":
		room, err := roomArg(args, 0)
		if err != nil {
			return err
		}
		return chat.MarkRoomRead(ctx, room)
	case "translate":
		room, err := roomArg(args, 0)
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return fmt.Errorf("missing message key")
		}
		_, err = chat.Translate(ctx, room, args[1])
		return err
	case "notifications":
		for _, n := range session.Notifications().Items() {
			fmt.Printf("%d  %-11s read=%-5t %s\n", n.ID, n.Kind, n.Read, n.Title)
		}
	case "open-notification":
		id, err := intArg(args, 0)
		if err != nil {
			return err
		}
		return session.Notifications().Open(ctx, id)
	case "read-all":
		return session.Notifications().MarkAllRead(ctx)
	case "delete":
		ids := make([]int64, 0, len(args))
		for i := range args {
			id, err := intArg(args, i)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return session.Notifications().Delete(ctx, ids)
	case "notify":
		return session.SetNotificationsEnabled(ctx, onOff(args))
	case "focus":
		return session.SetFocused(ctx, onOff(args))
	default:
		fmt.Println(usage)
	}
	return nil
}

func roomArg(args []string, i int) (domain.RoomID, error) {
	id, err := intArg(args, i)
	return domain.RoomID(id), err
}

func intArg(args []string, i int) (int64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i+1)
	}
	return strconv.ParseInt(args[i], 10, 64)
}

func onOff(args []string) bool {
	return len(args) > 0 && args[0] == "on"
}
