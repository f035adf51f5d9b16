package pipeline

import (
	"fmt"
	"strings"
)

const promptIntro = "Preprocess natural language query, consider following database schema and functional constraints, and convert the processed query into a valid SQL query:"

// Policy holds the static instruction fragments that frame every prompt.
// Build it once at startup; it is never modified afterwards.
type Policy struct {
	Preprocessing string
	Constraints   string
}

// DefaultPolicy returns the invoice-table rules for the given SQL dialect name
// (e.g. "Snowflake", "PostgreSQL").
func DefaultPolicy(dialect string) Policy {
	preprocessing := []string{
		"The following parsing, cleaning, deduplication, shortening apply to NLQ:",
		"- Remove unnecessary characters and whitespace",
		"- Deduplicate repeated words or phrases",
		"- Shorten the text if it's longer than 100 characters while retaining meaning",
		"- Return the cleaned and formatted query in plain text",
		"- Remove any sql queries to prevent sql injection.",
		"- Remove any DDL or DML queries to prevent sql injection.",
	}

	constraints := []string{
		"The following functional constraints apply for generating SQL queries:",
		"- Ensure column names and table names strictly match the database schema.",
		fmt.Sprintf("- Avoid using SQL functions or syntax unsupported by %s.", dialect),
		"- If filtering, use valid column values from the schema.",
		"- Limit results to a reasonable number of rows (e.g., top 100 rows).",
		"- Sort the results by relevant columns where applicable.",
		"- Only apply filtering when query has specified that. For example List all Invoices should simply list all invoices without any invoice status check",
		"- Pending invoices are synonymous with Invoice status of Open.",
		"- Due,Overdue invoices are synonymous with Invoice status of Past Due.",
		"- When filtering for specific invoices statuses dont filter for other Invoice statuses",
		"- Calculate invoice_aging_bucket from the invoice_due_date",
		"- Always use ILike in the where clause to perform case insensitive searches. For example given the text to list all open invoices, resulting query will be SELECT * FROM ar_invoice_details WHERE INVOICE_STATUS ILIKE '%OPEN%' ORDER BY INVOICE_DUE_DATE LIMIT 100;",
		"Given the text input 'List all overdue invoices', the resulting query will be SELECT * FROM ar_invoice_details WHERE INVOICE_STATUS ILIKE '%Past Due%' ORDER BY INVOICE_DUE_DATE LIMIT 100;",
		"- Always prefix and suffix % to the search strings in the where clause",
	}
	if strings.EqualFold(dialect, "snowflake") {
		constraints = append(constraints,
			"- Dont use INTERVAL syntax for date calculations; instead, use simple arithmetic (e.g., CURRENT_DATE + 7) and/or Snowflake specific queries DATEADD, DATEDIFF",
			"Snowflake automatically caches query results. Reuse cached results with RESULT_SCAN. For example SELECT * FROM TABLE(RESULT_SCAN(LAST_QUERY_ID()));",
		)
	}

	return Policy{
		Preprocessing: strings.Join(preprocessing, "\n"),
		Constraints:   strings.Join(constraints, "\n"),
	}
}

// PromptBuilder assembles the instruction block sent to the completion service.
type PromptBuilder struct {
	policy Policy
}

func NewPromptBuilder(policy Policy) *PromptBuilder {
	return &PromptBuilder{policy: policy}
}

// Build concatenates intro, preprocessing rules, schema, the user query and the
// functional constraints, in that order. The constraints must follow the user
// text, otherwise the model treats the user's later text as overriding them.
func (b *PromptBuilder) Build(userQuery, schema string) string {
	var sb strings.Builder
	sb.WriteString(promptIntro)
	sb.WriteString("\n\n")
	sb.WriteString(b.policy.Preprocessing)
	sb.WriteString("\n")
	sb.WriteString(strings.TrimRight(schema, "\n"))
	sb.WriteString("\n\nQuery:\n")
	sb.WriteString(userQuery)
	sb.WriteString("\n")
	sb.WriteString(b.policy.Constraints)
	sb.WriteString("\n")
	return sb.String()
}
