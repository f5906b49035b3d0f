package cmd

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

// modelsPath is the upstream path listing the models behind the proxy.
const modelsPath = "v1/models"

// modelsCmd represents the models command
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available through the proxy",
	Long: `List the models reported by the OpenAI-compatible proxy.

The configured model is marked in the DEFAULT column.

Example:
  vchat models`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client := newProxyClient(cfg)

		resp, err := client.Do(cmd.Context(), modelsPath, nil, http.MethodGet)
		if err != nil {
			return fmt.Errorf("listing models: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("listing models: unexpected status %d", resp.StatusCode)
		}

		var list openai.ModelsList
		if !client.DecodeJSON(resp, &list) {
			return fmt.Errorf("listing models: invalid response")
		}
		if len(list.Models) == 0 {
			fmt.Fprintln(os.Stderr, "No models returned from API.")
			return nil
		}

		sort.Slice(list.Models, func(i, j int) bool {
			return list.Models[i].ID < list.Models[j].ID
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL ID\tOWNED BY\tCREATED\tDEFAULT")
		fmt.Fprintln(w, "--------\t--------\t-------\t-------")
		for _, m := range list.Models {
			defaultMark := ""
			if m.ID == cfg.Model {
				defaultMark = "Yes"
			}
			created := "-"
			if m.CreatedAt > 0 {
				created = time.Unix(m.CreatedAt, 0).Format("2006-01-02")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.OwnedBy, created, defaultMark)
		}
		w.Flush()

		fmt.Printf("\nUse a model with: vchat chat --model <model> [message]\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
