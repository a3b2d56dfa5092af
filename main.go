package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/lotas/forumhilfe/internal/applog"
	"github.com/lotas/forumhilfe/internal/coordinator"
	"github.com/lotas/forumhilfe/internal/discourse"
	"github.com/lotas/forumhilfe/internal/pipeline"
	"github.com/lotas/forumhilfe/internal/sanitize"
	"github.com/lotas/forumhilfe/internal/server"
	"github.com/lotas/forumhilfe/internal/store"
	"github.com/lotas/forumhilfe/internal/summarize"
	"github.com/lotas/forumhilfe/internal/tui"
	"github.com/lotas/forumhilfe/internal/types"
)

func main() {
	godotenv.Load()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "summarize":
			runSummarize(os.Args[2:])
			return
		case "wait":
			runWait(os.Args[2:])
			return
		case "status":
			runStatus()
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}
	runServe(os.Args[1:])
}

func printHelp() {
	fmt.Print(`forumhilfe — forum post summaries and suggested moderator replies

Usage:
  forumhilfe [serve]                Run the daemon (default)
    --port <n>       WebSocket port for the extension (default: 19192)
    --db <path>      Database path (default: ~/.local/share/forumhilfe/forumhilfe.db)
    --tui            Also open the terminal view
    --reuse-on-activate   Keep cached post data when a tab regains focus

  forumhilfe summarize <url>        One-shot: fetch a post and print its summary
    --reply          Also compose a suggested moderator reply

  forumhilfe wait                   Block until a processed result is stored, print it
    --timeout <dur>  Give up after this long (default: 60s)

  forumhilfe status                 Print connection state and last processed URL

Environment:
  OPENAI_API_KEY        API key for the summarization endpoint (required)
  OPENAI_BASE_URL       Endpoint base URL (default: https://api.openai.com/v1)
  FORUMHILFE_MODEL      Model name (default: gpt-4o-mini)
  FORUMHILFE_DATA_DIR   Log/database directory (default: ~/.local/share/forumhilfe)
  FORUMHILFE_DEBUG      Set to 1 for debug log events
`)
}

func dataDir() string {
	if dir := os.Getenv("FORUMHILFE_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "forumhilfe")
}

func llmClient() *summarize.Client {
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := os.Getenv("FORUMHILFE_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return summarize.NewClient(baseURL, os.Getenv("OPENAI_API_KEY"), model)
}

func openStore(path string) *store.Store {
	if path == "" {
		var err error
		path, err = store.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	return st
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 19192, "WebSocket port for the extension")
	dbPath := fs.String("db", "", "Database path")
	withTUI := fs.Bool("tui", false, "Also open the terminal view")
	reuse := fs.Bool("reuse-on-activate", false, "Keep cached post data when a tab regains focus")
	fs.Parse(args)

	if err := applog.Init(dataDir()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: log init: %v\n", err)
	}
	defer applog.Close()

	st := openStore(*dbPath)
	defer st.Close()

	// Idempotency entries are session-scoped; a fresh daemon starts clean.
	if err := st.DeleteByPrefix(store.ProcessedPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: clear session entries: %v\n", err)
	}

	srv := server.New(*port)
	pipe := pipeline.New(discourse.NewClient(), llmClient(), st)
	svc := coordinator.New(srv, st, pipe, coordinator.Options{ReuseOnActivate: *reuse})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Error: server: %v\n", err)
			stop()
		}
	}()
	go svc.Run(ctx)

	applog.Info("serve.start", "port", *port)

	if *withTUI {
		p := tea.NewProgram(tui.NewModel(st), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "Listening for the extension on 127.0.0.1:%d (Ctrl-C to stop)\n", *port)
	<-ctx.Done()
}

func runSummarize(args []string) {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	withReply := fs.Bool("reply", false, "Also compose a suggested moderator reply")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: forumhilfe summarize [--reply] <post-url>")
		os.Exit(1)
	}
	url := fs.Arg(0)
	if !discourse.IsTopicURL(url) {
		fmt.Fprintf(os.Stderr, "Error: %q is not a forum topic URL\n", url)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rec, err := discourse.NewClient().FetchTopic(ctx, url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	rec.Content = sanitize.Text(rec.Content)

	llm := llmClient()
	summary, err := llm.Complete(ctx, summarize.ProfileModerator, rec.Content)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("# %s\n\n@%s, %d replies\n\n%s\n", rec.Title, rec.Author, rec.ReplyCount, summary)

	if *withReply {
		prompt := summarize.BuildReplyPrompt(rec, nil)
		reply, err := llm.Complete(ctx, summarize.ProfileReply, prompt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n## Suggested reply\n\n%s\n", reply)
	}
}

func runWait(args []string) {
	fs := flag.NewFlagSet("wait", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path")
	timeout := fs.Duration("timeout", 60*time.Second, "Give up after this long")
	fs.Parse(args)

	st := openStore(*dbPath)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := st.WaitFor(ctx, time.Second, store.ResultKeys...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var result types.ProcessedResult
	if _, err := st.GetJSON(store.KeyCurrentPostData, &result.CurrentPost); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if _, err := st.GetJSON(store.KeyRelatedPostsData, &result.RelatedPosts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if _, err := st.GetJSON(store.KeyModResponse, &result.ModResponse); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

func runStatus() {
	st := openStore("")
	defer st.Close()

	connected := false
	st.GetJSON(store.KeyIsConnected, &connected)
	var lastURL string
	st.GetJSON(store.KeyLastProcessedURL, &lastURL)

	state := "disabled"
	if connected {
		state = "enabled"
	}
	fmt.Printf("Participation: %s\n", state)
	if lastURL != "" {
		fmt.Printf("Last processed: %s\n", lastURL)
	} else {
		fmt.Println("Last processed: (none)")
	}
}
