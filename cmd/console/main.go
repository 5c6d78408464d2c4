package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"docchat-client/internal/bootstrap"
	"docchat-client/internal/config"
	"docchat-client/internal/dto"
	"docchat-client/internal/tracer"
	"docchat-client/pkg/backend"
	"docchat-client/pkg/database"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const help = `Commands:
  signin <access-token>   sign in with a Supabase access token
  signout                 sign out and clear the workspace
  list                    reload sessions
  new                     start a session (asks for PDFs)
  use <n>                 switch to session n of the list
  delete <n>              delete session n
  upload <file.pdf>...    attach PDFs to the active session
  skip                    close the upload prompt
  show                    print the active transcript
  <text>                  ask the active session
  quit`

type console struct {
	container *bootstrap.Container
	ctx       context.Context
}

func main() {
	cfg := config.Load()

	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		var err error
		gormDB, err = database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			color.Red("Unable to connect to database: %v", err)
			os.Exit(1)
		}
	}

	container := bootstrap.NewContainer(gormDB, cfg, bootstrap.Options{Quiet: true})
	defer container.Close()

	shutdownTracer := tracer.InitTracer(cfg.Tracing, container.Logger)
	defer shutdownTracer(context.Background())

	c := &console{container: container, ctx: context.Background()}

	color.Cyan("docchat console. Type 'help' for commands.")
	if cfg.Auth.AccessToken != "" {
		c.signIn(cfg.Auth.AccessToken)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(c.prompt())
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		c.dispatch(line)
	}
}

func (c *console) prompt() string {
	snap := c.container.ChatService.Snapshot()
	if !snap.SignedIn {
		return "(signed out)> "
	}
	for _, s := range snap.Sessions {
		if s.Active {
			return fmt.Sprintf("[%s]> ", s.Label)
		}
	}
	return "> "
}

func (c *console) dispatch(line string) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "help":
		fmt.Println(help)
	case "signin":
		c.signIn(rest)
	case "signout":
		c.container.IdentityService.SignOut(c.ctx)
		color.Yellow("Signed out.")
	case "list":
		if _, err := c.container.ChatService.RefreshSessions(c.ctx); err != nil {
			c.fail(err)
			return
		}
		c.printSessions()
	case "new":
		s, err := c.container.ChatService.CreateSession(c.ctx)
		if err != nil {
			c.fail(err)
			return
		}
		color.Green("Session %s started.", s.Id)
		c.printPending()
	case "use":
		id, ok := c.sessionAt(rest)
		if !ok {
			return
		}
		if err := c.container.ChatService.Activate(c.ctx, id); err != nil {
			c.fail(err)
			return
		}
		c.printPending()
		c.printTranscript()
	case "delete":
		id, ok := c.sessionAt(rest)
		if !ok {
			return
		}
		if err := c.container.ChatService.DeleteSession(c.ctx, id); err != nil {
			c.fail(err)
			return
		}
		color.Yellow("Deleted.")
	case "upload":
		c.upload(strings.Fields(rest))
	case "skip":
		if err := c.container.ChatService.DismissUpload(c.ctx); err != nil {
			c.fail(err)
		}
	case "show":
		c.printTranscript()
	default:
		c.send(line)
	}
}

func (c *console) signIn(token string) {
	if token == "" {
		color.Red("Usage: signin <access-token>")
		return
	}
	identity, err := c.container.IdentityService.SignIn(c.ctx, token)
	if err != nil {
		c.fail(err)
		return
	}
	color.Green("Signed in as %s.", identity.Email)
	c.printSessions()
}

func (c *console) send(text string) {
	snap := c.container.ChatService.Snapshot()
	if snap.ActiveSessionId == nil {
		color.Red("No active session. Use 'new' or 'use <n>'.")
		return
	}
	reply, err := c.container.ChatService.Send(c.ctx, *snap.ActiveSessionId, text)
	if err != nil {
		c.fail(err)
		return
	}
	color.Cyan("assistant: %s", reply.Text)
}

func (c *console) upload(paths []string) {
	snap := c.container.ChatService.Snapshot()
	if snap.ActiveSessionId == nil {
		color.Red("No active session.")
		return
	}

	files := make([]backend.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			color.Red("Cannot read %s: %v", p, err)
			return
		}
		files = append(files, backend.File{Name: filepath.Base(p), Data: data})
	}

	ids, err := c.container.ChatService.Upload(c.ctx, *snap.ActiveSessionId, files)
	if err != nil {
		c.fail(err)
		return
	}
	color.Green("Attached %d document(s).", len(ids))
	c.printTranscript()
}

// sessionAt resolves a 1-based list position.
func (c *console) sessionAt(arg string) (uuid.UUID, bool) {
	sessions := c.container.ChatService.Snapshot().Sessions
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(sessions) {
		color.Red("Pick a session between 1 and %d.", len(sessions))
		return uuid.Nil, false
	}
	return sessions[n-1].Id, true
}

func (c *console) printSessions() {
	sessions := c.container.ChatService.Snapshot().Sessions
	if len(sessions) == 0 {
		color.Yellow("No sessions yet. Type 'new'.")
		return
	}
	for i, s := range sessions {
		marker := " "
		if s.Active {
			marker = "*"
		}
		line := fmt.Sprintf("%s %2d. %s", marker, i+1, s.Label)
		if len(s.DocumentIds) == 0 {
			color.HiBlack("%s (no documents)", line)
			continue
		}
		fmt.Println(line)
	}
}

func (c *console) printPending() {
	if c.container.ChatService.Snapshot().PendingUpload {
		color.Yellow("This session has no documents. Attach PDFs with 'upload <file.pdf>...'.")
	}
}

func (c *console) printTranscript() {
	snap := c.container.ChatService.Snapshot()
	printMessages(snap.Transcript.Messages)
}

func printMessages(messages []dto.ChatMessageView) {
	for _, m := range messages {
		at := m.Timestamp.Local().Format("15:04")
		if m.IsUser {
			color.White("[%s] you: %s", at, m.Text)
			continue
		}
		color.Cyan("[%s] assistant: %s", at, m.Text)
	}
}

func (c *console) fail(err error) {
	color.Red("Error: %v", err)
	c.container.ChatService.DismissError(c.ctx)
}
