package service

import "fmt"

// maxSummaryInput caps how much of a file is sent to the summarizer.
const maxSummaryInput = 10000

// Placeholder strings persisted when summarization fails. Downstream UI
// distinguishes a placeholder from an absent row, so these exact values
// matter.
const (
	fileSummaryPlaceholder   = "Error: Unable to summarize the provided code."
	commitSummaryPlaceholder = "No summary generated"
)

// insufficientInfoAnswer is the fallback the generator is instructed to emit
// when the supplied context cannot answer the question.
const insufficientInfoAnswer = "I'm sorry, I don't have enough information to answer that question."

// summarizeFilePrompt builds the structured per-file summary prompt. The
// source is truncated to maxSummaryInput characters by the caller.
func summarizeFilePrompt(fileName, projectType, techStack, code string) string {
	if projectType == "" {
		projectType = "General application"
	}
	if techStack == "" {
		techStack = "Unknown"
	}
	return fmt.Sprintf(`You are a senior software engineer helping onboard a new developer to this project.

Project context:
- Repository type: %s
- Tech stack: %s
- This file: %s

Your role:
Explain this file as if you were documenting it for a new developer joining the team.

Your goals:
1. Summarize the **purpose** of this file and its role in the project.
2. Describe **main functions, classes, or exports** and what they do.
3. Explain **how this file interacts with other parts** of the system (if inferable).
4. Focus on intent and behavior - not on repeating the code.
5. Keep your explanation **under 120 words**.
6. Use a confident, technical tone suitable for internal engineering documentation.
7. If the code appears incomplete or only boilerplate, note that briefly.

Here is the code (trimmed to %d characters for efficiency):
---
%s
---
Now produce a clear, technical summary below:
`, projectType, techStack, fileName, maxSummaryInput, code)
}

// summarizeDiffPrompt builds the commit diff summary prompt.
func summarizeDiffPrompt(diff string) string {
	return fmt.Sprintf(`You are an expert programmer, and you are trying to summarize a git diff.

Reminders about the git diff format:
For every file, there are a few metadata lines, like (for example):
`+"```"+`
diff --git a/lib/index.js b/lib/index.js
index aadf691..bfef603 100644
--- a/lib/index.js
+++ b/lib/index.js
`+"```"+`
This means that lib/index.js was modified in this commit.
A line starting with + means that this line was added.
A line starting with - means that this line was removed.
A line that starts with neither + nor - is context for understanding and is not part of the diff.

EXAMPLE SUMMARY COMMENTS:
`+"```"+`
* Raised the amount of returned recordings from 10 to 100 [packages/server/recordings_api.ts], [packages/server/constants.ts]
* Fixed a typo in the GitHub action name [.github/workflows/summarizer.yml]
* Moved the API client initialization to a separate file [src/client.ts], [src/index.ts]
* Lowered numeric tolerance for test files
`+"```"+`

Please summarize the following diff file:
%s
`, diff)
}

// answerPrompt builds the grounded question-answering prompt. The generator
// must answer only from the supplied context and fall back to an explicit
// insufficient-information message otherwise.
func answerPrompt(contextBlock, question string) string {
	return fmt.Sprintf(`You are a senior ai code assistant who answers questions about the codebase. Your target audience is a technical intern who is looking to understand the codebase. Be technical, concise, and accurate.

START CONTEXT BLOCK
%s
END OF CONTEXT BLOCK

START QUESTION
%s
END OF QUESTION

Answer the question using only the CONTEXT BLOCK above. If the context does not contain the information needed to answer the question, say exactly: "%s"

Do not invent anything that is not drawn directly from the context.
Answer in markdown syntax, with code snippets if needed. Be as detailed as possible when answering, and provide step by step instructions if the question is about code, make sure there is no ambiguity in your answer.
`, contextBlock, question, insufficientInfoAnswer)
}
