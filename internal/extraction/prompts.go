package extraction

import (
	"strings"

	"github.com/dvloznov/bookkeeper/internal/domain"
)

const statementPrompt = "You are a financial statement parser for bank statements.\n\n" +
	"Task:\n" +
	"- Parse ALL transactions in the attached statement.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a JSON array of objects.\n\n" +
	"Each object must have these fields:\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"description\": string\n" +
	"- \"debit\": number or null (money OUT of the account, positive)\n" +
	"- \"credit\": number or null (money IN to the account, positive)\n\n" +
	"Rules:\n" +
	"- Exactly one of \"debit\" and \"credit\" is set per transaction.\n" +
	"- Do not include opening or closing balance lines.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"[\" and end with \"]\".\n"

// buildStatementPrompt returns the statement extraction prompt, with the
// document text appended when the source is plain text.
func buildStatementPrompt(text string) string {
	if strings.TrimSpace(text) == "" {
		return statementPrompt
	}
	return statementPrompt + "\nStatement text:\n" + text + "\n"
}

// buildSuggestionPrompt describes the chart of accounts and the material to
// explain, and asks for one balanced journal entry.
func buildSuggestionPrompt(req SuggestionRequest) string {
	var b strings.Builder
	b.WriteString("You are a bookkeeper preparing one double-entry journal entry.\n\n")
	b.WriteString("Use ONLY the following accounts (code: name [type]):\n")
	for _, a := range req.Accounts {
		b.WriteString("  - " + a.Code + ": " + a.Name + " [" + a.Type + "]")
		if a.IsBankAccount {
			b.WriteString(" (bank)")
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(req.Transactions) > 0 {
		b.WriteString("Bank transactions to explain")
		if req.BankAccountCode != "" {
			b.WriteString(" (bank account " + req.BankAccountCode + ")")
		}
		b.WriteString(":\n")
		for _, tx := range req.Transactions {
			dir := "money in"
			if tx.Type == domain.TxDebit {
				dir = "money out"
			}
			b.WriteString("  - " + tx.Date.Format(domain.DateLayout) + " | " + tx.Description +
				" | " + tx.Amount.StringFixed(2) + " " + dir + "\n")
		}
		b.WriteString("\n")
		if len(req.Transactions) > 1 {
			b.WriteString("Combine them into ONE entry. Net the bank side into a single line.\n\n")
		}
	}
	if memo := strings.TrimSpace(req.Memo); memo != "" {
		b.WriteString("Memo:\n" + memo + "\n\n")
	}

	b.WriteString("Output a single JSON object:\n")
	b.WriteString("{\"date\": \"YYYY-MM-DD\", \"description\": string, " +
		"\"lines\": [{\"accountCode\": string, \"debit\": number, \"credit\": number}]}\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. Total debits must equal total credits.\n")
	b.WriteString("2. Each line has either a debit or a credit, the other is 0.\n")
	b.WriteString("3. If you are unsure of an account, use code \"" + domain.SuspenseCode + "\".\n")
	b.WriteString("Return ONLY valid raw JSON, no code fences.\n")
	return b.String()
}
