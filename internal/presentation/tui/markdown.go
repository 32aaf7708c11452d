package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
)

// JobsMarkdown lays out a job search result as a table.
func JobsMarkdown(res domain.SearchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Jobs (%d found, %d pages)\n\n", len(res.Jobs), res.Pages)
	if len(res.Jobs) > 0 {
		sb.WriteString("| ID | Title | Company | Link |\n|---|---|---|---|\n")
		for _, j := range res.Jobs {
			fmt.Fprintf(&sb, "| %d | %s | %s | %s |\n", j.ID, cell(j.Title), cell(j.Company), j.URL)
		}
	}
	writeErrors(&sb, res.Errors)
	return sb.String()
}

// PeopleMarkdown lays out a people search result as a table.
func PeopleMarkdown(res domain.PeopleResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# People (%d found)\n\n", len(res.People))
	if len(res.People) > 0 {
		sb.WriteString("| Name | Title | Profile |\n|---|---|---|\n")
		for _, p := range res.People {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", cell(p.Name), cell(p.Title), p.ProfileURL)
		}
	}
	writeErrors(&sb, res.Errors)
	return sb.String()
}

// SubmissionsMarkdown lays out connect-or-message outcomes.
func SubmissionsMarkdown(results []domain.SubmissionResult) string {
	var sb strings.Builder
	sent := 0
	for _, r := range results {
		if r.Sent {
			sent++
		}
	}
	fmt.Fprintf(&sb, "# Submissions (%d of %d sent)\n\n", sent, len(results))
	sb.WriteString("| Profile | Method | Sent | Error |\n|---|---|---|---|\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", r.Identifier, r.Method, yesNo(r.Sent), cell(r.Error))
	}
	return sb.String()
}

// ApplyMarkdown lays out an application outcome with the answers given.
func ApplyMarkdown(res domain.ApplyResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Application\n\n- **Job:** %s\n- **Submitted:** %s\n- **Steps:** %d\n", res.JobURL, yesNo(res.Submitted), res.Steps)
	if res.Error != "" {
		fmt.Fprintf(&sb, "- **Error:** %s\n", res.Error)
	}
	if len(res.Answers) > 0 {
		labels := make([]string, 0, len(res.Answers))
		for l := range res.Answers {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		sb.WriteString("\n| Field | Answer |\n|---|---|\n")
		for _, l := range labels {
			fmt.Fprintf(&sb, "| %s | %s |\n", cell(l), cell(res.Answers[l]))
		}
	}
	return sb.String()
}

// LoginMarkdown describes a login outcome.
func LoginMarkdown(res domain.LoginResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Login: %s\n\n", res.Status)
	if res.Prompt != "" {
		fmt.Fprintf(&sb, "> %s\n\n", res.Prompt)
	}
	if res.Error != "" {
		fmt.Fprintf(&sb, "**Error:** %s\n", res.Error)
	}
	return sb.String()
}

func writeErrors(sb *strings.Builder, errs []string) {
	if len(errs) == 0 {
		return
	}
	sb.WriteString("\n## Problems\n\n")
	for _, e := range errs {
		fmt.Fprintf(sb, "- %s\n", e)
	}
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
