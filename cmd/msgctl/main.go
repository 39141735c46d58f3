// Command msgctl drives the academy messaging API from the command line.
//
// Credentials are taken from ACADEMY_SESSION_TOKEN, then
// ACADEMY_BRANCH_MANAGER_TOKEN, then MESSAGING_API_TOKEN.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/academy-platform/dashboard-messaging/internal/auth"
	"github.com/academy-platform/dashboard-messaging/internal/config"
	"github.com/academy-platform/dashboard-messaging/internal/messaging"
	"github.com/academy-platform/dashboard-messaging/internal/model"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
)

const usage = `usage: msgctl [-url URL] [-v] <command> [args]

commands:
  conversations [-skip N] [-limit N]
  thread <thread-id> [-skip N] [-limit N]
  send -to ID -type ROLE -subject S -content C [-priority P] [-reply-to ID] [-thread ID]
  read <message-id>
  archive <message-id>
  delete <message-id>
  stats
  recipients [students|coaches|branch-managers|superadmins] [-branch ID]
  notifications [-skip N] [-limit N]
  notification-read <notification-id>
  unread
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "msgctl:", err)
		var authErr *messaging.AuthError
		if errors.As(err, &authErr) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.Load()

	global := flag.NewFlagSet("msgctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	baseURL := global.String("url", cfg.MessagingAPIURL, "messaging API base URL")
	verbose := global.Bool("v", false, "log requests to stderr")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	log := logger.NewNop()
	if *verbose {
		l, err := logger.NewDevelopment("debug")
		if err != nil {
			return err
		}
		log = l
	}
	defer log.Sync()

	sessions := auth.Chain(
		auth.EnvStore("ACADEMY_SESSION_TOKEN"),
		auth.EnvStore("ACADEMY_BRANCH_MANAGER_TOKEN"),
		auth.Static(cfg.MessagingAPIToken),
	)
	client := messaging.NewClient(*baseURL, sessions,
		messaging.WithHTTPClient(&http.Client{Timeout: cfg.MessagingTimeout}),
		messaging.WithLogger(log.Named("msgctl")),
	)

	cmd, rest := global.Arg(0), global.Args()[1:]
	log.Debug("running command", zap.String("command", cmd), zap.String("url", *baseURL))

	result, err := dispatch(ctx, client, cmd, rest, stderr)
	if err != nil {
		return err
	}
	return printJSON(stdout, result)
}

func dispatch(ctx context.Context, client *messaging.Client, cmd string, args []string, stderr io.Writer) (any, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	skip := fs.Int("skip", 0, "entries to skip")
	limit := fs.Int("limit", 20, "page size")

	switch cmd {
	case "conversations":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return client.GetConversations(ctx, *skip, *limit)

	case "thread":
		id, err := parseWithID(fs, args, "thread id")
		if err != nil {
			return nil, err
		}
		return client.GetThreadMessages(ctx, id, *skip, *limit)

	case "send":
		to := fs.String("to", "", "recipient user id")
		role := fs.String("type", "", "recipient role")
		subject := fs.String("subject", "", "subject")
		content := fs.String("content", "", "message body")
		priority := fs.String("priority", "", "low, normal, high or urgent")
		replyTo := fs.String("reply-to", "", "message id being answered")
		threadID := fs.String("thread", "", "thread to post into")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		recipientType, err := model.ParseRole(*role)
		if err != nil {
			return nil, err
		}
		return client.SendMessage(ctx, model.SendMessageRequest{
			RecipientID:      *to,
			RecipientType:    recipientType,
			Subject:          *subject,
			Content:          *content,
			Priority:         model.Priority(*priority),
			ReplyToMessageID: *replyTo,
			ThreadID:         *threadID,
		})

	case "read", "archive", "delete":
		id, err := parseWithID(fs, args, "message id")
		if err != nil {
			return nil, err
		}
		switch cmd {
		case "read":
			return client.MarkMessageAsRead(ctx, id)
		case "archive":
			return client.ArchiveMessage(ctx, id)
		default:
			return client.DeleteMessage(ctx, id)
		}

	case "stats":
		return client.GetMessageStats(ctx)

	case "recipients":
		branch := fs.String("branch", "", "branch id filter for students and coaches")
		var kind string
		if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
			kind, args = args[0], args[1:]
		}
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if kind == "" {
			return client.GetAvailableRecipients(ctx)
		}
		role, ok := recipientKinds[kind]
		if !ok {
			return nil, fmt.Errorf("unknown recipient kind %q", kind)
		}
		return client.GetMessageable(ctx, role, *branch)

	case "notifications":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return client.GetMessageNotifications(ctx, *skip, *limit)

	case "notification-read":
		id, err := parseWithID(fs, args, "notification id")
		if err != nil {
			return nil, err
		}
		return client.MarkMessageNotificationAsRead(ctx, id)

	case "unread":
		count := client.UnreadNotificationCount(ctx)
		out := map[string]any{"unread": count.Count, "available": count.Available()}
		if count.Err != nil {
			out["error"] = count.Err.Error()
		}
		return out, nil
	}

	return nil, fmt.Errorf("unknown command %q", cmd)
}

var recipientKinds = map[string]model.Role{
	"students":        model.RoleStudent,
	"coaches":         model.RoleCoach,
	"branch-managers": model.RoleBranchManager,
	"superadmins":     model.RoleSuperadmin,
}

// parseWithID reads one leading positional id followed by flags.
func parseWithID(fs *flag.FlagSet, args []string, what string) (string, error) {
	if len(args) == 0 || args[0] == "" || args[0][0] == '-' {
		return "", fmt.Errorf("missing %s", what)
	}
	id := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return "", err
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
