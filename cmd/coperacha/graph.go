package main

import (
	"fmt"
	"os"

	"github.com/aretw0/coperacha/internal/presentation/graph"
	"github.com/aretw0/coperacha/pkg/dialogue"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the dialogue graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the dialogue steps and transitions.
With --session the step that session waits in is highlighted; with --live each step shows how many sessions wait in it.`,
	Run: func(cmd *cobra.Command, args []string) {
		identity, _ := cmd.Flags().GetString("session")
		live, _ := cmd.Flags().GetBool("live")

		var overlay *graph.Overlay
		if identity != "" || live {
			overlay = &graph.Overlay{}
			store, done := openSessions(cmd)
			defer done()

			if identity != "" {
				sess, err := store.Load(cmd.Context(), identity)
				if err != nil {
					fmt.Printf("Error loading session '%s': %v\n", identity, err)
					os.Exit(1)
				}
				overlay.Current = sess.Step
			}
			if live {
				ids, err := store.List(cmd.Context())
				if err != nil {
					fmt.Printf("Error listing sessions: %v\n", err)
					os.Exit(1)
				}
				overlay.Sessions = make(map[domain.Step]int)
				for _, id := range ids {
					sess, err := store.Load(cmd.Context(), id)
					if err != nil {
						// Expired between List and Load.
						continue
					}
					overlay.Sessions[sess.Step]++
				}
			}
		}

		fmt.Print(graph.GenerateMermaid(domain.Steps, dialogue.Edges, overlay))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the step of this session")
	graphCmd.Flags().Bool("live", false, "Annotate steps with the number of waiting sessions")
}
