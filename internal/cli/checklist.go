package cli

import (
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/filo-ai/portal/internal/checklist"
)

type checklistDoc struct {
	Title     string         `yaml:"title"`
	Type      string         `yaml:"type"`
	DueDate   string         `yaml:"due_date"`
	Documents []checklistRow `yaml:"documents"`
}

type checklistRow struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Format      string `yaml:"format,omitempty"`
	Required    bool   `yaml:"required"`
}

// NewChecklistCommand prints the checklist derived for a title.
func NewChecklistCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "checklist <title>",
		Short: "Print the document checklist derived for a conversation title",
		Example: `  filoctl checklist "GST return for March"
  filoctl checklist "New conversation"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeChecklist(cmd.OutOrStdout(), strings.Join(args, " "), time.Now())
		},
	}
}

func writeChecklist(w io.Writer, title string, now time.Time) error {
	slots := checklist.Derive(title)
	task := checklist.BuildTask("cli", title, slots, now)

	doc := checklistDoc{
		Title:   title,
		Type:    string(task.Type),
		DueDate: task.DueDate,
	}
	for _, s := range slots {
		doc.Documents = append(doc.Documents, checklistRow{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Format:      s.Format,
			Required:    s.Required,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
