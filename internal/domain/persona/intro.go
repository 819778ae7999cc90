package persona

import (
	"strings"
)

const introClosing = "---\n\n*Feel free to ask me any questions about my professional experience!*"

// IntroMessage renders the markdown greeting shown as the first assistant turn.
// additional_context is deliberately absent; it is prompt-only material.
func IntroMessage(d *Document) string {
	var b strings.Builder

	b.WriteString(d.Intro)
	b.WriteString("\n\n")
	b.WriteString("# " + d.Name + "\n## " + d.Title + "\n\n" + d.Summary + "\n\n")

	b.WriteString("## Professional Experience\n\n")
	for _, job := range d.Employment {
		b.WriteString("### " + job.Role + " at " + job.Company + "\n")
		b.WriteString("*" + job.Duration + "* | " + job.Location + "\n\n")
		b.WriteString("**Key Responsibilities:**\n")
		writeBullets(&b, job.Responsibilities)
		b.WriteString("\n**Notable Achievements:**\n")
		writeBullets(&b, job.Achievements)
		b.WriteString("\n**Technologies:** " + strings.Join(job.Technologies, ", ") + "\n\n")
	}

	b.WriteString("## Technical Skills\n")
	for _, row := range skillRows(d.Skills) {
		b.WriteString("- **" + row.label + ":** " + strings.Join(row.items, ", ") + "\n")
	}
	b.WriteString("\n")

	b.WriteString("## Education\n")
	for _, edu := range d.Education {
		b.WriteString("**" + edu.Degree + "**\n")
		b.WriteString(edu.School + " | " + edu.Year + "\n\n")
	}

	b.WriteString(introClosing)
	return b.String()
}

type skillRow struct {
	label string
	items []string
}

func skillRows(s Skills) []skillRow {
	return []skillRow{
		{"Languages", s.Languages},
		{"Frontend", s.Frontend},
		{"Backend", s.Backend},
		{"Databases", s.Databases},
		{"Cloud & DevOps", s.Cloud},
		{"Tools", s.Tools},
		{"Other", s.Other},
	}
}

func writeBullets(b *strings.Builder, items []string) {
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
}
