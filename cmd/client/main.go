package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/client/session"
	"github.com/atinyakov/PomeloX/internal/identity"
	"github.com/atinyakov/PomeloX/internal/logger"
	"github.com/atinyakov/PomeloX/internal/pomelox"
)

var (
	version   string
	buildDate string
)

// repl runs the interactive shell loop, reading commands through the app's
// prompter until exit or end of input.
func repl(ctx context.Context, a *app) {
	for {
		line, err := a.prompt.Ask("pomelox> ")
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out, "error:", err)
			}
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(a.out, "Bye")
			return
		}
		cmdCtx, cancel := context.WithTimeout(ctx, time.Minute)
		if err := a.run(cmdCtx, args); err != nil {
			fmt.Fprintln(a.out, "error:", describe(err))
		}
		cancel()
	}
}

// main parses command-line flags and runs one command, or the shell.
func main() {
	var (
		baseURL     string
		sessionPath string
		catalogPath string
		logLevel    string
		showVer     bool
	)

	flag.StringVar(&baseURL, "url", "", "PomeloX API base URL (default: saved session or "+pomelox.DefaultBaseURL+")")
	flag.StringVar(&sessionPath, "session", session.DefaultPath(), "path to the session file")
	flag.StringVar(&catalogPath, "catalog", "", "YAML organization/school catalog")
	flag.StringVar(&logLevel, "log-level", "error", "log level")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <command> [args]   (no command starts the shell)\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVer {
		fmt.Printf("PomeloX Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	lg := logger.New()
	if err := lg.Init(logLevel); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Log.Sync() }()

	sess, err := session.Load(sessionPath)
	if err != nil {
		log.Fatal(err)
	}
	if baseURL == "" {
		baseURL = sess.BaseURL
	}
	if baseURL == "" {
		baseURL = pomelox.DefaultBaseURL
	}
	cat, err := identity.LoadCatalog(catalogPath)
	if err != nil {
		log.Fatal(err)
	}

	client := pomelox.New(baseURL, pomelox.WithLogger(lg.Log), pomelox.WithToken(sess.Token))
	a := newApp(client, sess, cat, session.NewPrompter(os.Stdin, os.Stdout), os.Stdout, lg.Log)
	a.baseURL = baseURL

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if flag.NArg() == 0 {
		repl(ctx, a)
		return
	}
	if err := a.run(ctx, flag.Args()); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			lg.Log.Debug("no session", zap.String("path", sessionPath))
		}
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}
