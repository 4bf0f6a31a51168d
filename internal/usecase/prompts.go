package usecase

import (
	"fmt"
	"strings"

	"copilot-orchestrator/internal/domain"
)

// Prompt builders for the pipeline stages. Every builder returns a system
// part (instructions + output format) and a user part (context + question),
// XML-tagged so the model can tell instructions from data.

const noContextSentinel = "NO_CONTEXT_NEEDED"

const maxSampleValuesPerField = 3

func buildRewritePrompt(question, history string) (string, string) {
	var sys strings.Builder
	sys.WriteString("<instructions>\n")
	for _, line := range []string{
		"You turn a user question into two retrieval queries over a workspace.",
		"1. \"semantic_query\": a self-contained natural-language restatement. Resolve pronouns and references using the conversation history.",
		"2. \"keyword_query\": the essential search terms, space-separated, no stop words.",
		"3. Both fields are required and must be non-empty.",
		"4. Respond with the JSON object only.",
	} {
		sys.WriteString("  <line>")
		sys.WriteString(escape(line))
		sys.WriteString("</line>\n")
	}
	sys.WriteString("</instructions>\n\n")
	sys.WriteString("<format>\n")
	sys.WriteString("JSON: {\"semantic_query\": \"...\", \"keyword_query\": \"...\"}\n")
	sys.WriteString("</format>\n")

	return sys.String(), historyAndQuestion(question, history)
}

func buildIntentPrompt(question, history string) (string, string) {
	var sys strings.Builder
	sys.WriteString("<instructions>\n")
	for _, line := range []string{
		"Decide whether answering the question requires looking up the user's workspace content.",
		"Greetings, general knowledge, translations, and questions about the ongoing conversation itself need no lookup.",
		"Questions about the user's documents, notes, tasks, projects, or anything workspace-specific need a lookup.",
		"If no lookup is needed, reply with exactly " + noContextSentinel + " and nothing else.",
		"Otherwise reply with RETRIEVE.",
	} {
		sys.WriteString("  <line>")
		sys.WriteString(escape(line))
		sys.WriteString("</line>\n")
	}
	sys.WriteString("</instructions>\n")

	return sys.String(), historyAndQuestion(question, history)
}

func buildFilterPrompt(question string, candidates []domain.DatabaseDescriptor) (string, string) {
	var sys strings.Builder
	sys.WriteString("<instructions>\n")
	for _, line := range []string{
		"Select which of the listed databases are relevant to the question, and optionally how to filter them.",
		"Only use database ids and field ids that appear in <databases>; anything else is discarded.",
		"Supported operators: \"equals\" (exact cell match) and \"contains\" (substring match).",
		"When no database is relevant, return empty lists.",
		"Respond with the JSON object only.",
	} {
		sys.WriteString("  <line>")
		sys.WriteString(escape(line))
		sys.WriteString("</line>\n")
	}
	sys.WriteString("</instructions>\n\n")
	sys.WriteString("<format>\n")
	sys.WriteString("JSON: {\n")
	sys.WriteString("  \"database_ids\": [\"...\"],\n")
	sys.WriteString("  \"field_filters\": {\"<database_id>\": [{\"field_id\": \"...\", \"operator\": \"equals|contains\", \"value\": \"...\"}]}\n")
	sys.WriteString("}\n")
	sys.WriteString("</format>\n")

	var user strings.Builder
	user.WriteString("<databases>\n")
	for _, db := range candidates {
		user.WriteString("  <database>\n")
		user.WriteString("    <id>")
		user.WriteString(escape(db.ID))
		user.WriteString("</id>\n")
		user.WriteString("    <name>")
		user.WriteString(escape(db.Name))
		user.WriteString("</name>\n")
		for _, field := range db.Fields {
			user.WriteString("    <field id=\"")
			user.WriteString(escape(field.ID))
			user.WriteString("\" name=\"")
			user.WriteString(escape(field.Name))
			user.WriteString("\" type=\"")
			user.WriteString(escape(field.Type))
			user.WriteString("\"")
			if samples := db.SampleValues[field.ID]; len(samples) > 0 {
				if len(samples) > maxSampleValuesPerField {
					samples = samples[:maxSampleValuesPerField]
				}
				user.WriteString(" samples=\"")
				user.WriteString(escape(strings.Join(samples, ", ")))
				user.WriteString("\"")
			}
			user.WriteString("/>\n")
		}
		user.WriteString("  </database>\n")
	}
	user.WriteString("</databases>\n\n")
	user.WriteString("<question>\n")
	user.WriteString(escape(question))
	user.WriteString("\n</question>\n")

	return sys.String(), user.String()
}

func buildRerankPrompt(query domain.RewrittenQuery, candidates []domain.CandidateDocument, semanticWeight, keywordWeight float64) (string, string) {
	var sys strings.Builder
	sys.WriteString("<instructions>\n")
	for _, line := range []string{
		"Order the documents by how well they answer the query, best first.",
		"Score each kept document with any positive number; only the relative order matters.",
		"The retrieval scores in <documents> already blend semantic and keyword relevance with the weights in <weights>; use them as a prior, not as the verdict.",
		"Omit documents that are irrelevant to the query.",
		"\"index\" must be the document's index attribute. Respond with the JSON object only.",
	} {
		sys.WriteString("  <line>")
		sys.WriteString(escape(line))
		sys.WriteString("</line>\n")
	}
	sys.WriteString("</instructions>\n\n")
	sys.WriteString("<format>\n")
	sys.WriteString("JSON: {\"rankings\": [{\"index\": 0, \"score\": 1.0}]}\n")
	sys.WriteString("</format>\n")

	var user strings.Builder
	fmt.Fprintf(&user, "<weights semantic=\"%.2f\" keyword=\"%.2f\"/>\n\n", semanticWeight, keywordWeight)
	user.WriteString("<documents>\n")
	for i, c := range candidates {
		fmt.Fprintf(&user, "  <document index=\"%d\" type=\"%s\" source_id=\"%s\" score=\"%.4f\">\n",
			i, escape(string(c.SourceType)), escape(c.SourceID), c.Score)
		if c.Title != "" {
			user.WriteString("    <title>")
			user.WriteString(escape(c.Title))
			user.WriteString("</title>\n")
		}
		user.WriteString("    <content>")
		user.WriteString(escape(c.Content))
		user.WriteString("</content>\n")
		user.WriteString("  </document>\n")
	}
	user.WriteString("</documents>\n\n")
	user.WriteString("<query>\n")
	user.WriteString(escape(query.SemanticQuery))
	user.WriteString("\n</query>\n")

	return sys.String(), user.String()
}

func buildVerdictPrompt(question, history string, query domain.RewrittenQuery, documents []domain.RankedDocument) (string, string) {
	var sys strings.Builder
	sys.WriteString("<instructions>\n")
	for _, line := range []string{
		"Judge whether the collected evidence suffices to answer the question completely.",
		"If it does, set \"sufficient\" to true and omit \"refined_query\".",
		"If it does not, list what is missing in \"gaps\" and propose a \"refined_query\" targeting those gaps.",
		"The refined query must differ from the one already used; repeating it will not find new evidence.",
		"Respond with the JSON object only.",
	} {
		sys.WriteString("  <line>")
		sys.WriteString(escape(line))
		sys.WriteString("</line>\n")
	}
	sys.WriteString("</instructions>\n\n")
	sys.WriteString("<format>\n")
	sys.WriteString("JSON: {\n")
	sys.WriteString("  \"sufficient\": false,\n")
	sys.WriteString("  \"gaps\": [\"...\"],\n")
	sys.WriteString("  \"refined_query\": {\"semantic_query\": \"...\", \"keyword_query\": \"...\"}\n")
	sys.WriteString("}\n")
	sys.WriteString("</format>\n")

	var user strings.Builder
	user.WriteString("<evidence>\n")
	for _, d := range documents {
		fmt.Fprintf(&user, "  <document source_id=\"%s\">", escape(d.Document.SourceID))
		user.WriteString(escape(d.Document.Content))
		user.WriteString("</document>\n")
	}
	user.WriteString("</evidence>\n\n")
	user.WriteString("<current_query>\n")
	user.WriteString(escape(query.SemanticQuery))
	user.WriteString("\n</current_query>\n\n")
	user.WriteString(historyAndQuestion(question, history))

	return sys.String(), user.String()
}

func buildEnrichPrompt(title, documentText, chunkText string) (string, string) {
	var sys strings.Builder
	sys.WriteString("<instructions>\n")
	for _, line := range []string{
		"Write one to three short sentences situating the chunk within its document: what the document is about and what this part covers.",
		"The text is prepended to the chunk before indexing, so it must stand on its own.",
		"Output only the context text. No preamble, no quotes, no restatement of the chunk.",
	} {
		sys.WriteString("  <line>")
		sys.WriteString(escape(line))
		sys.WriteString("</line>\n")
	}
	sys.WriteString("</instructions>\n")

	var user strings.Builder
	user.WriteString("<document title=\"")
	user.WriteString(escape(title))
	user.WriteString("\">\n")
	user.WriteString(escape(documentText))
	user.WriteString("\n</document>\n\n")
	user.WriteString("<chunk>\n")
	user.WriteString(escape(chunkText))
	user.WriteString("\n</chunk>\n")

	return sys.String(), user.String()
}

func buildAnswerPrompt(question, history string, documents []domain.RankedDocument) (string, string) {
	var sys strings.Builder
	sys.WriteString("<instructions>\n")
	for _, line := range []string{
		"Answer the question using ONLY the documents in <context>.",
		"Cite every claim: list the supporting source_id values in \"citations\", each with a short quote from that source.",
		"Only cite source_id values that appear in <context>.",
		"If the context is insufficient for part of the question, say so in the answer instead of inventing facts.",
		"Respond with the JSON object only.",
	} {
		sys.WriteString("  <line>")
		sys.WriteString(escape(line))
		sys.WriteString("</line>\n")
	}
	sys.WriteString("</instructions>\n\n")
	sys.WriteString("<format>\n")
	sys.WriteString("JSON: {\n")
	sys.WriteString("  \"answer\": \"...\",\n")
	sys.WriteString("  \"citations\": [{\"source_id\": \"...\", \"quote\": \"...\"}]\n")
	sys.WriteString("}\n")
	sys.WriteString("</format>\n")

	var user strings.Builder
	user.WriteString("<context>\n")
	for _, d := range documents {
		fmt.Fprintf(&user, "  <document source_id=\"%s\" type=\"%s\">\n",
			escape(d.Document.SourceID), escape(string(d.Document.SourceType)))
		if d.Document.Title != "" {
			user.WriteString("    <title>")
			user.WriteString(escape(d.Document.Title))
			user.WriteString("</title>\n")
		}
		user.WriteString("    <content>")
		user.WriteString(escape(d.Document.Content))
		user.WriteString("</content>\n")
		user.WriteString("  </document>\n")
	}
	user.WriteString("</context>\n\n")
	user.WriteString(historyAndQuestion(question, history))

	return sys.String(), user.String()
}

func buildDirectPrompt(question, history string) (string, string) {
	var sys strings.Builder
	sys.WriteString("<instructions>\n")
	for _, line := range []string{
		"Answer the question directly from general knowledge and the conversation history.",
		"Be concise and concrete. Plain text, no JSON.",
	} {
		sys.WriteString("  <line>")
		sys.WriteString(escape(line))
		sys.WriteString("</line>\n")
	}
	sys.WriteString("</instructions>\n")

	return sys.String(), historyAndQuestion(question, history)
}

func historyAndQuestion(question, history string) string {
	var user strings.Builder
	if strings.TrimSpace(history) != "" {
		user.WriteString("<history>\n")
		user.WriteString(escape(history))
		user.WriteString("\n</history>\n\n")
	}
	user.WriteString("<question>\n")
	user.WriteString(escape(question))
	user.WriteString("\n</question>\n")
	return user.String()
}

func escape(value string) string {
	s := strings.TrimSpace(value)
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(s)
}
