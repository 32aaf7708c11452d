package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/tendril/internal/presentation/tui"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/workflows/outreach"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// messageFile is the batch format accepted by send --file.
type messageFile struct {
	Messages []struct {
		ProfileURL string `yaml:"profile_url"`
		Name       string `yaml:"name"`
		Text       string `yaml:"text"`
		Subject    string `yaml:"subject"`
	} `yaml:"messages"`
}

func loadMessages(path string) ([]outreach.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	var f messageFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse messages %s: %w", path, err)
	}
	if len(f.Messages) == 0 {
		return nil, fmt.Errorf("%s: no messages", path)
	}
	reqs := make([]outreach.Request, len(f.Messages))
	for i, m := range f.Messages {
		reqs[i] = outreach.Request{ProfileURL: m.ProfileURL, Name: m.Name, Text: m.Text, Subject: m.Subject}
	}
	return reqs, nil
}

var sendCmd = &cobra.Command{
	Use:   "send [profile-url]",
	Short: "Connect with or message a profile",
	Long: `Sends a connection request or a message to one profile, or to every entry
of a YAML file given with --file:

  messages:
    - profile_url: https://www.linkedin.com/in/someone/
      text: Hello!`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		text, _ := cmd.Flags().GetString("text")
		subject, _ := cmd.Flags().GetString("subject")
		name, _ := cmd.Flags().GetString("name")

		var reqs []outreach.Request
		switch {
		case file != "" && len(args) > 0:
			return errors.New("give either a profile URL or --file, not both")
		case file != "":
			var err error
			if reqs, err = loadMessages(file); err != nil {
				return err
			}
		case len(args) == 1:
			reqs = []outreach.Request{{ProfileURL: args[0], Name: name, Text: text, Subject: subject}}
		default:
			return errors.New("a profile URL or --file is required")
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var results []domain.SubmissionResult
		if len(reqs) == 1 {
			res, err := a.svc.SendMessage(cmd.Context(), reqs[0])
			if err != nil {
				return err
			}
			results = []domain.SubmissionResult{res}
		} else {
			results = a.svc.SendMessages(cmd.Context(), reqs)
		}
		return render(cmd, results, tui.SubmissionsMarkdown(results))
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().String("text", "", "Message or invitation note")
	sendCmd.Flags().String("subject", "", "Subject, used by paid messages")
	sendCmd.Flags().String("name", "", "Display name, for logs and results")
	sendCmd.Flags().StringP("file", "f", "", "YAML file with a batch of messages")
	addJSONFlag(sendCmd)
}
