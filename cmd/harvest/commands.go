package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/harvest"
	"github.com/poiesic/harvest/ai"
	"github.com/poiesic/harvest/chat"
	"github.com/poiesic/harvest/config"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/ingestion"
)

const pollInterval = 250 * time.Millisecond

func appConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func openApp(c *cli.Context) (*harvest.App, error) {
	app, err := harvest.Open(c.Context, appConfig(c))
	if err != nil {
		return nil, fmt.Errorf("failed to open harvest: %w", err)
	}
	return app, nil
}

// poll calls get until done reports true, the call fails, or ctx ends.
func poll[T any](ctx context.Context, get func() (T, error), done func(T) bool) (T, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		v, err := get()
		if err != nil || done(v) {
			return v, err
		}
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-ticker.C:
		}
	}
}

func serveCommand(c *cli.Context) error {
	cfg := appConfig(c)
	if listen := c.String("listen"); listen != "" {
		cfg.Listen = listen
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Serve(ctx)
}

func scrapeCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one URL")
	}
	crawl, err := core.NewCrawlConfig(core.CrawlMode(c.String("mode")), c.Int("max-depth"), c.Int("max-pages"))
	if err != nil {
		return err
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, owner, orch := c.Context, c.String("owner"), app.Orchestrator()
	id, err := orch.CreateJob(ctx, owner, c.Args().First(), crawl)
	if err != nil {
		return err
	}
	if err := orch.StartJob(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "Job: %s\n", id)

	progress := newProgressPrinter(c.App.ErrWriter)
	job, err := poll(ctx, func() (*ingestion.JobStatusView, error) {
		job, err := orch.GetStatus(ctx, id, owner)
		if err == nil {
			progress.Update(job.Progress, job.Message)
		}
		return job, err
	}, func(job *ingestion.JobStatusView) bool { return job.Status.Terminal() })
	progress.Finish()
	if err != nil {
		return err
	}
	if job.Status == core.JobStatusFailed {
		return fmt.Errorf("scrape failed: %s", job.Error)
	}
	fmt.Fprintf(c.App.Writer, "%s\t%s\t%d pages\n", job.ID, job.Status, job.Pages)
	return nil
}

func uploadCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("expected at least one file")
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	var failed int
	for _, path := range c.Args().Slice() {
		doc, err := uploadFile(c, app.Orchestrator(), path)
		if err != nil {
			failed++
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%d chunks\t%s\n", doc.ID, doc.Status, doc.ChunkCount, doc.Filename)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, c.NArg())
	}
	return nil
}

func uploadFile(c *cli.Context, orch *ingestion.Orchestrator, path string) (*ingestion.DocumentStatusView, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ctx, owner := c.Context, c.String("owner")
	id, err := orch.UploadDocument(ctx, owner, filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	doc, err := poll(ctx, func() (*ingestion.DocumentStatusView, error) {
		return orch.GetDocumentStatus(ctx, id, owner)
	}, func(doc *ingestion.DocumentStatusView) bool { return doc.Status.Terminal() })
	if err != nil {
		return nil, err
	}
	if doc.Status == core.JobStatusFailed {
		return nil, errors.New(doc.Error)
	}
	return doc, nil
}

func buildCommand(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, owner, orch := c.Context, c.String("owner"), app.Orchestrator()
	id, err := orch.CreateVectorDatabase(ctx, ingestion.DatabaseRequest{
		Owner:       owner,
		Name:        c.String("name"),
		Description: c.String("description"),
		Sources: core.SourceSet{
			ScrapeJobID:    c.String("job"),
			DocumentJobIDs: c.StringSlice("doc"),
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", id)

	progress := newProgressPrinter(c.App.ErrWriter)
	db, err := poll(ctx, func() (*ingestion.DatabaseStatusView, error) {
		db, err := orch.GetDatabaseStatus(ctx, id, owner)
		if err == nil {
			progress.Update(-1, db.Message)
		}
		return db, err
	}, func(db *ingestion.DatabaseStatusView) bool { return db.Status != core.DatabaseStatusBuilding })
	progress.Finish()
	if err != nil {
		return err
	}
	if db.Status == core.DatabaseStatusError {
		return fmt.Errorf("build failed: %s", db.Message)
	}
	fmt.Fprintf(c.App.Writer, "%s\t%s\t%d documents\t%d chunks\n", db.ID, db.Status, db.DocumentCount, db.ChunkCount)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	mode, err := core.ParseSearchMode(c.String("mode"))
	if err != nil {
		return err
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	results, err := app.Searcher().Search(c.Context, c.String("db"), c.String("owner"), query, mode, c.Int("top-k"))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(c.App.Writer, "No results.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(c.App.Writer, "%d. [%.3f] %s\n   %s\n   %s\n", i+1, r.Score, r.Title, r.URL, snippet(r.Content, 200))
	}
	return nil
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

func askCommand(c *cli.Context) error {
	mode, err := core.ParseSearchMode(c.String("mode"))
	if err != nil {
		return err
	}
	sessionID, dbID := c.String("session"), c.String("db")
	if sessionID == "" && dbID == "" {
		return fmt.Errorf("%w: --db or --session is required", core.ErrInvalidRequest)
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, owner, svc := c.Context, c.String("owner"), app.Chat()
	if sessionID == "" && c.Bool("new-session") {
		session, err := svc.StartSession(ctx, owner, dbID, chat.SessionConfig{Model: c.String("model"), Mode: mode})
		if err != nil {
			return err
		}
		sessionID = session.ID
		fmt.Fprintf(c.App.Writer, "session %s\n", sessionID)
	}

	var turn turnFunc
	if sessionID != "" {
		turn = sessionTurn(svc, sessionID, owner)
	} else {
		turn = statelessTurn(svc, chat.Request{DatabaseID: dbID, Owner: owner, Mode: mode})
	}
	if c.NArg() > 0 {
		answer, err := turn(ctx, strings.Join(c.Args().Slice(), " "))
		if err != nil {
			return err
		}
		printAnswer(c.App.Writer, answer)
		return nil
	}
	return chatLoop(ctx, turn, c.App.Reader, c.App.Writer)
}

// turnFunc answers one question of a conversation.
type turnFunc func(ctx context.Context, message string) (*chat.Answer, error)

// statelessTurn keeps the conversation history in memory.
func statelessTurn(svc *chat.Service, req chat.Request) turnFunc {
	return func(ctx context.Context, message string) (*chat.Answer, error) {
		req.Message = message
		answer, err := svc.Ask(ctx, req)
		if err != nil {
			return nil, err
		}
		req.History = append(req.History,
			ai.Message{Role: ai.RoleUser, Content: message},
			ai.Message{Role: ai.RoleAssistant, Content: answer.Text})
		return answer, nil
	}
}

// sessionTurn sends every question to a stored session.
func sessionTurn(svc *chat.Service, sessionID, owner string) turnFunc {
	return func(ctx context.Context, message string) (*chat.Answer, error) {
		return svc.Send(ctx, sessionID, owner, message)
	}
}

// chatLoop reads questions line by line until EOF or "exit".
func chatLoop(ctx context.Context, turn turnFunc, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, `Ask a question. Type "exit" to quit.`)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		answer, err := turn(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printAnswer(out, answer)
	}
}

func sessionsCommand(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	sessions, err := app.Chat().ListSessions(c.Context, c.String("owner"))
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATABASE\tMODEL\tMODE\tUPDATED")
	for _, s := range sessions {
		model := s.Model
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.DatabaseID, model, s.Mode, s.UpdatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func historyCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("%w: expected one session id", core.ErrInvalidRequest)
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	messages, err := app.Chat().History(c.Context, c.Args().First(), c.String("owner"))
	if err != nil {
		return err
	}
	for _, m := range messages {
		fmt.Fprintf(c.App.Writer, "[%s] %s\n", m.Role, m.Content)
	}
	return nil
}

func deleteSessionCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("%w: expected one session id", core.ErrInvalidRequest)
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	id := c.Args().First()
	if err := app.Chat().DeleteSession(c.Context, id, c.String("owner")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
	return nil
}

func printAnswer(w io.Writer, answer *chat.Answer) {
	fmt.Fprintln(w, answer.Text)
	if len(answer.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, s := range answer.Sources {
		fmt.Fprintf(w, "  [%d] %s (%s)\n", i+1, s.Title, s.URL)
	}
}

func jobsCommand(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, owner, orch := c.Context, c.String("owner"), app.Orchestrator()
	jobs, err := orch.ListJobs(ctx, owner)
	if err != nil {
		return err
	}
	docs, err := orch.ListDocumentJobs(ctx, owner)
	if err != nil {
		return err
	}
	dbs, err := orch.ListDatabases(ctx, owner)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tID\tSTATUS\tDETAIL")
	for _, j := range jobs {
		fmt.Fprintf(tw, "scrape\t%s\t%s\t%s %s (%d pages)\n", j.ID, j.Status, j.Mode, j.URL, j.Pages)
	}
	for _, d := range docs {
		fmt.Fprintf(tw, "document\t%s\t%s\t%s (%d chunks)\n", d.ID, d.Status, d.Filename, d.ChunkCount)
	}
	for _, db := range dbs {
		fmt.Fprintf(tw, "database\t%s\t%s\t%s (%d documents, %d chunks)\n", db.ID, db.Status, db.Name, db.DocumentCount, db.ChunkCount)
	}
	return tw.Flush()
}

func statusCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one id")
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, id, owner, orch := c.Context, c.Args().First(), c.String("owner"), app.Orchestrator()
	var view any
	if job, err := orch.GetStatus(ctx, id, owner); err == nil {
		view = job
	} else if doc, err := orch.GetDocumentStatus(ctx, id, owner); err == nil {
		view = doc
	} else if db, err := orch.GetDatabaseStatus(ctx, id, owner); err == nil {
		view = db
	} else {
		return fmt.Errorf("no job or database %s", id)
	}
	return printJSON(c.App.Writer, view)
}

func reclaimCommand(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.Orchestrator().ReclaimOrphans(c.Context)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, report)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
