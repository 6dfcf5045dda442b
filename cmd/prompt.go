package cmd

import (
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

// confirm asks label unless the command got --yes. A failed prompt counts
// as a no.
func confirm(cmd *cobra.Command, label string) bool {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true
	}

	prompt := promptui.Select{
		Label: label,
		Items: []string{PromptYes, PromptNo},
	}

	_, answer, err := prompt.Run()
	if err != nil {
		return false
	}
	return answer == PromptYes
}
