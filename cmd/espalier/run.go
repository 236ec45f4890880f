package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/espalier/internal/demo"
	"github.com/aretw0/espalier/internal/logging"
	"github.com/aretw0/espalier/internal/presentation/tui"
	"github.com/aretw0/espalier/pkg/adapters/memory"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/session"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [action]",
	Short: "Run the demo controller interactively",
	Long: `Mounts the ArticlesLive demo controller in a local session and dispatches
events typed on stdin. Templates render through glamour when stdout is a
terminal.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, dir, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		action := "index"
		if len(args) > 0 {
			action = args[0]
		}

		interactive := term.IsTerminal(int(os.Stdout.Fd()))
		if interactive {
			tui.PrintBanner()
		}

		views, err := buildViews(cfg, dir)
		if err != nil {
			fmt.Printf("Error opening views: %v\n", err)
			os.Exit(1)
		}

		ctrl, err := demo.NewController(views, logging.New(logging.ParseLevel(cfg.LogLevel)))
		if err != nil {
			fmt.Printf("Error building controller: %v\n", err)
			os.Exit(1)
		}

		manager := session.NewManager(memory.NewStore())
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		env, err := manager.Mount(ctx, "local", ctrl, action, nil, nil)
		if err != nil {
			fmt.Printf("Mount failed: %v\n", err)
			os.Exit(1)
		}
		if env.Disposition == domain.DispositionRedirect {
			fmt.Printf("Redirected to %s\n", env.Target)
			return
		}

		render := tui.NewRenderer()
		printView := func(action string, state *domain.State) {
			rendered, err := ctrl.Render(ctx, action, state)
			if err != nil {
				fmt.Printf("Render failed: %v\n", err)
				return
			}
			if interactive {
				if out, err := render(rendered.Content); err == nil {
					fmt.Print(out)
					return
				}
			}
			fmt.Println(rendered.Content)
		}
		printView(action, env.State)

		fmt.Printf("Events: %s. Type 'exit' to quit.\n", strings.Join(ctrl.Events(), ", "))

		reader := bufio.NewReader(os.Stdin)
		for {
			fmt.Print("> ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				fmt.Println("Bye!")
				return
			}

			// Syntax: <event> [json params], e.g. delete {"id":"2"}
			event, rest, _ := strings.Cut(line, " ")
			params := domain.Params{}
			if rest != "" {
				if err := json.Unmarshal([]byte(rest), &params); err != nil {
					fmt.Printf("Invalid params (want JSON object): %v\n", err)
					continue
				}
			}

			env, err = manager.Dispatch(ctx, "local", ctrl, event, params)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}

			if env.Disposition == domain.DispositionRedirect {
				fmt.Printf("Redirected to %s\n", env.Target)
				return
			}
			printView(action, env.State)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Make 'run' the default if no command is provided.
	rootCmd.Run = runCmd.Run
}
